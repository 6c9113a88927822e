// Package events defines the event vocabulary exchanged between one client
// connection and its session: the inbound events the connection submits and
// the outbound events the session relays back.
//
// Every event carries a kind and an arrival timestamp through [Base]. Inbound
// events are applied in arrival order; outbound events are emitted in the
// order the session produced them.
package events

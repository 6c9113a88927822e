// Command ada-server exposes conversation sessions over a websocket
// endpoint. Each connection gets its own session wired to Gemini Live for
// generation, Deepgram for speech synthesis, and the default tool set.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	session "github.com/ada-assistant/ada-core/core"
	"github.com/ada-assistant/ada-core/core/events"
	"github.com/ada-assistant/ada-core/core/llms/gemini"
	"github.com/ada-assistant/ada-core/core/texttospeech/deepgram"
	"github.com/ada-assistant/ada-core/core/tools"
	"github.com/ada-assistant/ada-core/core/tools/providers"
	"github.com/ada-assistant/ada-core/core/websearch"
)

const (
	defaultAddr = ":8000"

	// outboundQueueSize bounds the per-connection send queue. Audio frames
	// are dropped first when a client cannot keep up.
	outboundQueueSize = 64
)

const systemInstruction = "You are ADA, a helpful real-time voice assistant. " +
	"Answer concisely and conversationally. Use the available tools for " +
	"weather, travel times and web searches instead of guessing."

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	srv, err := newServer()
	if err != nil {
		slog.Error("failed to set up server", "error", err)
		os.Exit(1)
	}

	addr := os.Getenv("ADA_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	http.HandleFunc("/session", srv.handleSession)
	slog.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type server struct {
	model    *gemini.Client
	speech   *deepgram.TextToSpeechClient
	registry *tools.Registry

	upgrader websocket.Upgrader
}

func newServer() (*server, error) {
	providerClient := providers.NewClient()
	extractor, err := websearch.NewExtractor(providerClient.FetchPage)
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(providers.DefaultTools(providerClient, extractor)...)
	if err != nil {
		return nil, err
	}

	model, err := gemini.NewClient(
		gemini.WithSystemInstruction(systemInstruction),
		gemini.WithToolDeclarations(registry.Declarations()...),
	)
	if err != nil {
		return nil, err
	}

	speech, err := deepgram.NewTextToSpeechClient()
	if err != nil {
		return nil, err
	}

	return &server{
		model:    model,
		speech:   speech,
		registry: registry,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}, nil
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func (srv *server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess, err := session.New(
		session.WithModelClient(srv.model),
		session.WithSpeechSynthesis(srv.speech),
		session.WithToolRegistry(srv.registry),
	)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		return
	}
	log := slog.With("session", sess.ID)
	log.Info("session opened", "remote", r.RemoteAddr)

	out := make(chan outboundMessage, outboundQueueSize)
	gate := newReadGate()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go writeLoop(conn, out, log)

	callbacks := append(sessionCallbacks(out),
		session.WithBackpressureCallback(func(paused bool, queued int) {
			if paused {
				log.Warn("input queue over depth, pausing reads", "queued", queued)
				gate.pause()
				return
			}
			gate.resume()
		}),
	)

	go func() {
		defer cancel()
		// Release a paused read loop so teardown is never stuck behind
		// backpressure.
		defer gate.resume()
		err := sess.Run(ctx, callbacks...)
		if err != nil && !errors.Is(err, session.ErrSessionClosed) {
			log.Error("session ended with error", "error", err)
		}
	}()

	readLoop(conn, sess, gate, log)

	// Run returns before Close does, and a Run not yet started refuses to
	// start on a closed session, so no callback can send after this and the
	// queue can be closed to release the writer.
	cancel()
	sess.Close()
	close(out)
	log.Info("session closed")
}

// readGate pauses the connection read loop while the session's input queue
// is over depth, so a flooding client is throttled at its own socket instead
// of growing the queue without bound.
type readGate struct {
	mu   sync.Mutex
	open chan struct{}
}

func newReadGate() *readGate {
	g := &readGate{open: make(chan struct{})}
	close(g.open)
	return g
}

func (g *readGate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
	}
}

func (g *readGate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
	default:
		close(g.open)
	}
}

func (g *readGate) wait() {
	g.mu.Lock()
	open := g.open
	g.mu.Unlock()
	<-open
}

// readLoop translates client messages into session inputs until the
// connection drops, pausing between messages while the gate is closed.
func readLoop(conn *websocket.Conn, sess *session.Session, gate *readGate, log *slog.Logger) {
	for {
		gate.wait()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read failed", "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn("discarding malformed message", "error", err)
			continue
		}

		switch msg.Event {
		case "send_text_message":
			var data struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.Warn("discarding malformed text message", "error", err)
				continue
			}
			sess.SubmitText(data.Message)
		case "send_transcribed_text":
			var data struct {
				Transcript string `json:"transcript"`
			}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.Warn("discarding malformed transcript", "error", err)
				continue
			}
			sess.SubmitTranscript(data.Transcript)
		case "send_video_frame":
			var data struct {
				Frame string `json:"frame"`
				MIME  string `json:"mime"`
			}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				log.Warn("discarding malformed video frame", "error", err)
				continue
			}
			frame, err := base64.StdEncoding.DecodeString(data.Frame)
			if err != nil {
				log.Warn("discarding undecodable video frame", "error", err)
				continue
			}
			if data.MIME == "" {
				data.MIME = "image/jpeg"
			}
			sess.SubmitFrame(frame, data.MIME)
		case "video_feed_stopped":
			sess.StopFrameFeed()
		case "interrupt_speech":
			sess.Interrupt()
		case "pause_speech":
			sess.PauseSpeech()
		case "resume_speech":
			sess.ResumeSpeech()
		default:
			log.Warn("unknown event", "event", msg.Event)
		}
	}
}

// writeLoop is the connection's single writer.
func writeLoop(conn *websocket.Conn, out <-chan outboundMessage, log *slog.Logger) {
	for msg := range out {
		if err := conn.WriteJSON(msg); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				log.Warn("write failed", "event", msg.Event, "error", err)
			}
			return
		}
	}
}

// sessionCallbacks maps session events onto outbound messages. Audio frames
// are droppable under backpressure; everything else is delivered.
func sessionCallbacks(out chan<- outboundMessage) []session.RunOption {
	send := func(msg outboundMessage) {
		out <- msg
	}
	sendDroppable := func(msg outboundMessage) {
		select {
		case out <- msg:
		default:
		}
	}

	return []session.RunOption{
		session.WithTextDeltaCallback(func(delta events.TextDelta) {
			send(outboundMessage{Event: "receive_text_chunk", Data: map[string]any{"text": delta.Chunk}})
		}),
		session.WithTurnCompleteCallback(func(events.TurnComplete) {
			send(outboundMessage{Event: "turn_complete"})
		}),
		session.WithAudioFrameCallback(func(frame events.AudioFrame) {
			sendDroppable(outboundMessage{Event: "receive_audio_chunk", Data: map[string]any{
				"utterance_id": frame.UtteranceID,
				"sequence":     frame.Sequence,
				"audio":        base64.StdEncoding.EncodeToString(frame.Data),
			}})
		}),
		session.WithUtteranceEndedCallback(func(ended events.UtteranceEnded) {
			send(outboundMessage{Event: "utterance_ended", Data: map[string]any{
				"utterance_id": ended.UtteranceID,
				"interrupted":  ended.Interrupted,
			}})
		}),
		session.WithToolStatusCallback(func(status events.ToolStatus) {
			send(outboundMessage{Event: "tool_call_update", Data: map[string]any{
				"id":      status.CallID,
				"name":    status.Tool,
				"status":  status.Status,
				"summary": status.Summary,
			}})
		}),
		session.WithStateChangeCallback(func(state events.SessionState) {
			send(outboundMessage{Event: "update_state", Data: map[string]any{"state": state.State}})
		}),
		session.WithStatusCallback(func(status events.SessionStatus) {
			send(outboundMessage{Event: "status", Data: map[string]any{"message": status.Message}})
		}),
		session.WithErrorCallback(func(failure events.Error) {
			send(outboundMessage{Event: "error", Data: map[string]any{
				"cause":       failure.Cause,
				"message":     failure.Message,
				"recoverable": failure.Recoverable,
			}})
		}),
	}
}

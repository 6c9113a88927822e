package providers

import (
	"context"
	"fmt"
	"net/url"
	"slices"
)

// TravelEstimate is the structured travel-duration lookup result.
type TravelEstimate struct {
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	Mode            string `json:"mode"`
	Duration        string `json:"duration"`
	DurationSeconds int64  `json:"duration_seconds"`
	Distance        string `json:"distance"`
	DistanceMeters  int64  `json:"distance_meters"`
}

var travelModes = []string{"driving", "walking", "bicycling", "transit"}

// TravelDuration looks up the travel time between two places via the
// Distance Matrix API. An empty mode defaults to driving.
func (c *Client) TravelDuration(ctx context.Context, origin, destination, mode string) (*TravelEstimate, error) {
	if c.mapsKey == "" {
		return nil, fmt.Errorf("maps api key not configured")
	}
	if mode == "" {
		mode = "driving"
	}
	if !slices.Contains(travelModes, mode) {
		return nil, fmt.Errorf("unsupported travel mode: %s", mode)
	}

	urlValues := url.Values{}
	urlValues.Set("origins", origin)
	urlValues.Set("destinations", destination)
	urlValues.Set("mode", mode)
	urlValues.Set("key", c.mapsKey)

	var parsed struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Duration struct {
					Text  string `json:"text"`
					Value int64  `json:"value"`
				} `json:"duration"`
				Distance struct {
					Text  string `json:"text"`
					Value int64  `json:"value"`
				} `json:"distance"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := c.getJSON(ctx,
		(&url.URL{
			Scheme: "https",
			Host:   "maps.googleapis.com", Path: "/maps/api/distancematrix/json",
			RawQuery: urlValues.Encode(),
		}).String(),
		&parsed,
	); err != nil {
		return nil, fmt.Errorf("travel duration lookup failed: %w", err)
	}

	if parsed.Status != "OK" || len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("travel duration lookup returned status %q", parsed.Status)
	}
	element := parsed.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("no route found (%s)", element.Status)
	}

	return &TravelEstimate{
		Origin:          origin,
		Destination:     destination,
		Mode:            mode,
		Duration:        element.Duration.Text,
		DurationSeconds: element.Duration.Value,
		Distance:        element.Distance.Text,
		DistanceMeters:  element.Distance.Value,
	}, nil
}

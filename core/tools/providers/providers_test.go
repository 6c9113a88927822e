package providers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func cannedClient(t *testing.T, respond func(*http.Request) (string, string)) *Client {
	t.Helper()
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			body, contentType := respond(req)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{contentType}},
				Body:       io.NopCloser(strings.NewReader(body)),
				Request:    req,
			}, nil
		}),
	}
	return NewClient(
		WithHTTPClient(httpClient),
		WithOpenWeatherKey("test-weather-key"),
		WithMapsKey("test-maps-key"),
	)
}

func TestWeatherParsesProviderResponse(t *testing.T) {
	client := cannedClient(t, func(req *http.Request) (string, string) {
		if req.URL.Host != "api.openweathermap.org" {
			t.Fatalf("unexpected host %q", req.URL.Host)
		}
		if got := req.URL.Query().Get("q"); got != "Ljubljana" {
			t.Fatalf("expected the location in the query, got %q", got)
		}
		if got := req.URL.Query().Get("units"); got != "metric" {
			t.Fatalf("expected metric units, got %q", got)
		}
		return `{
			"name": "Ljubljana",
			"weather": [{"description": "light rain"}],
			"main": {"temp": 14.2, "feels_like": 13.1, "humidity": 87},
			"wind": {"speed": 2.5}
		}`, "application/json"
	})

	forecast, err := client.Weather(context.Background(), "Ljubljana")
	if err != nil {
		t.Fatalf("unexpected weather error: %v", err)
	}
	if forecast.Location != "Ljubljana" || forecast.Description != "light rain" {
		t.Fatalf("unexpected forecast: %#v", forecast)
	}
	if forecast.TempC != 14.2 || forecast.Humidity != 87 {
		t.Fatalf("unexpected forecast values: %#v", forecast)
	}
}

func TestWeatherRequiresAPIKey(t *testing.T) {
	client := NewClient(WithOpenWeatherKey(""))
	client.openWeatherKey = ""

	if _, err := client.Weather(context.Background(), "anywhere"); err == nil {
		t.Fatal("expected an error without an api key")
	}
}

func TestTravelDurationParsesProviderResponse(t *testing.T) {
	client := cannedClient(t, func(req *http.Request) (string, string) {
		if req.URL.Host != "maps.googleapis.com" {
			t.Fatalf("unexpected host %q", req.URL.Host)
		}
		return `{
			"status": "OK",
			"rows": [{"elements": [{
				"status": "OK",
				"duration": {"text": "25 mins", "value": 1500},
				"distance": {"text": "12 km", "value": 12000}
			}]}]
		}`, "application/json"
	})

	estimate, err := client.TravelDuration(context.Background(), "Home", "Work", "")
	if err != nil {
		t.Fatalf("unexpected travel error: %v", err)
	}
	if estimate.Mode != "driving" {
		t.Fatalf("expected the default driving mode, got %q", estimate.Mode)
	}
	if estimate.DurationSeconds != 1500 || estimate.DistanceMeters != 12000 {
		t.Fatalf("unexpected estimate values: %#v", estimate)
	}
}

func TestTravelDurationRejectsUnsupportedModes(t *testing.T) {
	client := cannedClient(t, func(*http.Request) (string, string) { return "{}", "application/json" })

	if _, err := client.TravelDuration(context.Background(), "A", "B", "teleport"); err == nil {
		t.Fatal("expected an error for an unsupported mode")
	}
}

func TestSearchParsesRankedHits(t *testing.T) {
	client := cannedClient(t, func(req *http.Request) (string, string) {
		if req.URL.Host != "html.duckduckgo.com" {
			t.Fatalf("unexpected host %q", req.URL.Host)
		}
		return `<html><body>
			<div class="result">
				<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Ffirst">First Hit</a>
				<div class="result__snippet">First   snippet text</div>
			</div>
			<div class="result">
				<a class="result__a" href="https://example.com/second">Second Hit</a>
				<div class="result__snippet">Second snippet</div>
			</div>
			<div class="result">
				<a class="result__a" href="javascript:void(0)">Junk</a>
			</div>
		</body></html>`, "text/html"
	})

	hits, err := client.Search(context.Background(), "example query")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 usable hits, got %d", len(hits))
	}
	if hits[0].URL != "https://example.com/first" {
		t.Fatalf("expected the redirect link to be unwrapped, got %q", hits[0].URL)
	}
	if hits[0].Title != "First Hit" || hits[0].Snippet != "First snippet text" {
		t.Fatalf("unexpected first hit: %#v", hits[0])
	}
	if hits[1].URL != "https://example.com/second" {
		t.Fatalf("expected the direct link to pass through, got %q", hits[1].URL)
	}
}

func TestResolveResultURL(t *testing.T) {
	cases := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage", "https://example.com/page"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"http://example.com/plain", "http://example.com/plain"},
		{"//example.com/protocol-relative", "https://example.com/protocol-relative"},
		{"javascript:void(0)", ""},
		{"mailto:someone@example.com", ""},
	}

	for _, tc := range cases {
		if got := resolveResultURL(tc.href); got != tc.want {
			t.Errorf("resolveResultURL(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ada-assistant/ada-core/core/tools"
	"github.com/ada-assistant/ada-core/core/websearch"
)

type weatherParams struct {
	Location string `json:"location" jsonschema:"title=Location,description=City or place to get the current weather for"`
}

type travelParams struct {
	Origin      string `json:"origin" jsonschema:"title=Origin,description=Starting point of the trip"`
	Destination string `json:"destination" jsonschema:"title=Destination,description=End point of the trip"`
	Mode        string `json:"mode,omitempty" jsonschema:"title=Mode,description=Travel mode,enum=driving,enum=walking,enum=bicycling,enum=transit"`
}

type searchParams struct {
	Query      string `json:"query" jsonschema:"title=Query,description=What to search the web for"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"title=Max results,description=How many pages to read,maximum=5"`
}

// searchResponse is what the model receives for a search call. Attempted vs
// succeeded lets it qualify incomplete answers.
type searchResponse struct {
	Results   []searchResult `json:"results"`
	Attempted int            `json:"attempted"`
	Succeeded int            `json:"succeeded"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

const defaultSearchTarget = 3

// DefaultTools wires the provider lookups into a tool set the dispatcher can
// register. The search tool reads result pages through the extractor.
func DefaultTools(client *Client, extractor *websearch.Extractor) []tools.Tool {
	return []tools.Tool{
		tools.New("get_weather", "Get the current weather for a location",
			func(ctx context.Context, params weatherParams) (string, error) {
				forecast, err := client.Weather(ctx, params.Location)
				if err != nil {
					return "", err
				}
				return marshalResult(forecast)
			},
			tools.WithTimeout(10*time.Second),
			tools.WithMaxInFlight(2),
		),
		tools.New("get_travel_duration", "Get the travel time and distance between two places",
			func(ctx context.Context, params travelParams) (string, error) {
				estimate, err := client.TravelDuration(ctx, params.Origin, params.Destination, params.Mode)
				if err != nil {
					return "", err
				}
				return marshalResult(estimate)
			},
			tools.WithTimeout(10*time.Second),
			tools.WithMaxInFlight(2),
		),
		tools.New("search_web", "Search the web and read the top result pages",
			func(ctx context.Context, params searchParams) (string, error) {
				return runSearch(ctx, client, extractor, params)
			},
			tools.WithTimeout(20*time.Second),
			tools.WithMaxInFlight(3),
		),
	}
}

func runSearch(ctx context.Context, client *Client, extractor *websearch.Extractor, params searchParams) (string, error) {
	hits, err := client.Search(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return marshalResult(searchResponse{Results: []searchResult{}})
	}

	target := params.MaxResults
	if target <= 0 || target > defaultSearchTarget {
		target = defaultSearchTarget
	}

	urls := make([]string, 0, len(hits))
	hitsByURL := map[string]SearchHit{}
	for _, hit := range hits {
		urls = append(urls, hit.URL)
		hitsByURL[hit.URL] = hit
	}

	report, err := extractor.Extract(ctx, urls, target)
	if err != nil {
		return "", err
	}

	response := searchResponse{
		Results:   []searchResult{},
		Attempted: report.Attempted,
		Succeeded: report.Succeeded,
	}
	for _, extracted := range report.Results {
		result := searchResult{
			Title:   extracted.Title,
			URL:     extracted.URL,
			Snippet: extracted.Snippet,
			Content: extracted.Body,
		}
		hit := hitsByURL[extracted.URL]
		if result.Title == "" {
			result.Title = hit.Title
		}
		if result.Snippet == "" {
			result.Snippet = hit.Snippet
		}
		response.Results = append(response.Results, result)
	}

	return marshalResult(response)
}

func marshalResult(result any) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return string(raw), nil
}

package gemini

import (
	"fmt"
	"os"

	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/gorilla/websocket"
)

const (
	defaultHost  = "generativelanguage.googleapis.com"
	defaultModel = "models/gemini-2.0-flash-live-001"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Client opens live streaming sessions against the Gemini bidirectional
// generation endpoint.
type Client struct {
	apiKey            string
	model             string
	systemInstruction string
	tools             []llms.ToolDeclaration

	host   string
	dialer *websocket.Dialer
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithSystemInstruction(instruction string) ClientOption {
	return func(c *Client) { c.systemInstruction = instruction }
}

func WithToolDeclarations(tools ...llms.ToolDeclaration) ClientOption {
	return func(c *Client) { c.tools = append(c.tools, tools...) }
}

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

// WithHost overrides the endpoint host, e.g. for tests.
func WithHost(host string) ClientOption {
	return func(c *Client) { c.host = host }
}

func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:  defaultModel,
		host:   defaultHost,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		apiKey, ok := os.LookupEnv("GEMINI_API_KEY")
		if !ok {
			return nil, fmt.Errorf("gemini api key not found")
		}
		c.apiKey = apiKey
	}

	return c, nil
}

package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/ada-assistant/ada-core/core/llms"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/codes"
)

// Connect dials the live endpoint, performs setup, and returns the open
// stream once the backend confirms it.
func (c *Client) Connect(ctx context.Context) (llms.LiveStream, error) {
	ctx, span := tracer.Start(ctx, "connect live stream")
	defer span.End()

	urlValues := url.Values{}
	urlValues.Set("key", c.apiKey)

	ws, _, err := c.dialer.DialContext(ctx,
		(&url.URL{
			Scheme:   "wss",
			Host:     c.host,
			Path:     bidiPath,
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to gemini: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stream := &liveStream{ws: ws}

	setup := setupPayload{
		Model:            c.model,
		GenerationConfig: &generationConfig{ResponseModalities: []string{"TEXT"}},
	}
	if c.systemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: c.systemInstruction}}}
	}
	if len(c.tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(c.tools))
		for _, tool := range c.tools {
			declarations = append(declarations, functionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		setup.Tools = []toolPayload{{FunctionDeclarations: declarations}}
	}

	if err := stream.sendWebsocketMessage(setupMessage{Setup: setup}); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to send setup message: %w", err)
	}

	if err := stream.awaitSetupComplete(); err != nil {
		_ = stream.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return stream, nil
}

type liveStream struct {
	ws *websocket.Conn
	mu sync.Mutex

	closed atomic.Bool
}

func (s *liveStream) awaitSetupComplete() error {
	_, msg, err := s.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read setup confirmation: %w", err)
	}

	var parsed serverMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return fmt.Errorf("failed to unmarshal setup confirmation: %w", err)
	}
	if parsed.SetupComplete == nil {
		return fmt.Errorf("expected setup confirmation, got: %s", msg)
	}

	return nil
}

func (s *liveStream) SendTurn(ctx context.Context, turn llms.Turn) error {
	if s.closed.Load() {
		return llms.ErrStreamClosed
	}

	parts := []part{}
	if turn.Frame != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: turn.FrameMIME,
			Data:     base64.StdEncoding.EncodeToString(turn.Frame),
		}})
	}
	if turn.Text != "" {
		parts = append(parts, part{Text: turn.Text})
	}
	if len(parts) == 0 {
		return nil
	}

	return s.sendWebsocketMessage(clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: parts}},
		TurnComplete: true,
	}})
}

func (s *liveStream) SendFrame(ctx context.Context, data []byte, mime string) error {
	if s.closed.Load() {
		return llms.ErrStreamClosed
	}

	return s.sendWebsocketMessage(realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{
			MIMEType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}})
}

func (s *liveStream) SendToolResult(ctx context.Context, result llms.ToolResult) error {
	if s.closed.Load() {
		return llms.ErrStreamClosed
	}

	response := map[string]any{"output": result.Response}
	if result.IsError {
		response = map[string]any{"error": result.Response}
	}

	return s.sendWebsocketMessage(toolResponseMessage{ToolResponse: toolResponse{
		FunctionResponses: []functionResponse{{
			ID:       result.ID,
			Name:     result.Name,
			Response: response,
		}},
	}})
}

// Events reads server messages until the socket fails or ctx is cancelled.
// Socket errors after Close end the iteration without an error, so the
// consumer can tell shutdown from disconnect.
func (s *liveStream) Events(ctx context.Context) func(func(llms.Event, error) bool) {
	return func(yield func(llms.Event, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				return
			}

			_, msg, err := s.ws.ReadMessage()
			if err != nil {
				if s.closed.Load() || ctx.Err() != nil {
					return
				}
				yield(nil, &llms.StreamError{Err: err})
				return
			}

			var parsed serverMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				yield(nil, &llms.StreamError{Err: fmt.Errorf("malformed server message: %w", err)})
				return
			}

			for _, event := range translateServerMessage(parsed) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}
}

// translateServerMessage maps one wire message onto zero or more stream
// events, preserving the order parts arrived in.
func translateServerMessage(msg serverMessage) []llms.Event {
	var translated []llms.Event

	if msg.ToolCall != nil {
		for _, call := range msg.ToolCall.FunctionCalls {
			arguments := "{}"
			if len(call.Args) > 0 {
				arguments = string(call.Args)
			}
			translated = append(translated, llms.ToolCallRequest{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: arguments,
			})
		}
	}

	if msg.ServerContent != nil {
		if msg.ServerContent.Interrupted {
			translated = append(translated, llms.Interrupted{})
		}
		if msg.ServerContent.ModelTurn != nil {
			for _, part := range msg.ServerContent.ModelTurn.Parts {
				if part.Text != "" {
					translated = append(translated, llms.TextDelta{Text: part.Text})
				}
			}
		}
		if msg.ServerContent.TurnComplete {
			translated = append(translated, llms.TurnComplete{})
		}
	}

	return translated
}

func (s *liveStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ws.Close(); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	return nil
}

func (s *liveStream) sendWebsocketMessage(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return llms.ErrStreamClosed
	}

	if err := s.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}

package tools

import (
	"context"
	"testing"
)

type echoParams struct {
	Message string `json:"message"`
}

func echoHandler(_ context.Context, params echoParams) (string, error) {
	return params.Message, nil
}

func TestRegistryKeepsDeclarationOrder(t *testing.T) {
	registry, err := NewRegistry(
		New("alpha", "first tool", echoHandler),
		New("beta", "second tool", echoHandler),
	)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}

	declarations := registry.Declarations()
	if len(declarations) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(declarations))
	}
	if declarations[0].Name != "alpha" || declarations[1].Name != "beta" {
		t.Fatalf("expected registration order to be preserved, got %v", declarations)
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(
		New("dup", "first", echoHandler),
		New("dup", "second", echoHandler),
	)
	if err == nil {
		t.Fatal("expected an error for duplicate tool names")
	}
}

func TestToolDeclarationCarriesReflectedSchema(t *testing.T) {
	tool := New("echo", "echoes the message", echoHandler)

	declaration := tool.Declaration()
	if declaration.Description != "echoes the message" {
		t.Fatalf("unexpected description %q", declaration.Description)
	}

	properties, ok := declaration.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected reflected properties, got %#v", declaration.Parameters)
	}
	if _, ok := properties["message"]; !ok {
		t.Fatalf("expected the message field in the schema, got %#v", properties)
	}
}

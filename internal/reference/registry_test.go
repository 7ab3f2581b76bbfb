package reference

import (
	"context"
	"testing"

	"StreamLookup/internal/domain"
)

type stubBackend struct{ name string }

func (s stubBackend) Name() string { return s.name }

func (s stubBackend) LoadReference(ctx context.Context) ([]domain.ReferenceRow, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(stubBackend{name: "dynamodb"})
	registry.Register(stubBackend{name: "postgres"})

	backend, err := registry.Resolve("postgres")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if backend.Name() != "postgres" {
		t.Fatalf("unexpected backend %s", backend.Name())
	}

	if _, err := registry.Resolve("clickhouse"); err == nil {
		t.Fatal("expected error for unregistered backend")
	}
	if names := registry.Names(); len(names) != 2 || names[0] != "dynamodb" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestRegistryZeroValue(t *testing.T) {
	t.Parallel()

	var registry Registry
	registry.Register(stubBackend{name: "dynamodb"})
	if _, err := registry.Resolve("dynamodb"); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
}

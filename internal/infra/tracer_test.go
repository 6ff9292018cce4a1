package infra

import (
	"context"
	"testing"

	"meal-stub-service/config"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), &config.Config{OtelEnabled: false}, "test")
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("want non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("want nil from no-op shutdown, got %v", err)
	}
}

package services_test

import (
	"context"
	"testing"

	"mixsplit/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithBatch(ctx, 2)
	ctx = services.WithStage(ctx, "split")
	ctx = services.WithFile(ctx, "/in/mix.mp3")
	ctx = services.WithTrack(ctx, 4)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if batch, ok := services.BatchFromContext(ctx); !ok || batch != 2 {
		t.Fatalf("unexpected batch: %v %v", batch, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "split" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if file, ok := services.FileFromContext(ctx); !ok || file != "/in/mix.mp3" {
		t.Fatalf("unexpected file: %v %v", file, ok)
	}
	if track, ok := services.TrackFromContext(ctx); !ok || track != 4 {
		t.Fatalf("unexpected track: %v %v", track, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithBatch(ctx, 0)
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.BatchFromContext(ctx); ok {
		t.Fatal("expected no batch value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}

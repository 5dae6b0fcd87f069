package main

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/store"
)

func TestResetWatermark(t *testing.T) {
	ctx := context.Background()
	st, err := store.New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	wm := st.WatermarkStore(watermarkName)
	if err := wm.Save(ctx, 4_102_444_800); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := resetWatermark(st, zap.NewNop()); err != nil {
		t.Fatalf("resetWatermark() error = %v", err)
	}
	if _, ok, err := wm.Load(ctx); err != nil || ok {
		t.Errorf("Load() after reset = ok %v, err %v; want nothing stored", ok, err)
	}

	if err := resetWatermark(st, zap.NewNop()); err != nil {
		t.Errorf("second resetWatermark() error = %v, want nil", err)
	}
}

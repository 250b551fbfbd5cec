package db

import (
	"context"
	"errors"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.err
}

func TestCheck_Healthy(t *testing.T) {
	h := Check(context.Background(), stubPinger{})
	if h.Status != "healthy" {
		t.Errorf("expected healthy, got %q", h.Status)
	}
	if !h.Healthy() {
		t.Error("expected Healthy() to be true")
	}
	if h.Error != "" {
		t.Errorf("expected no error, got %q", h.Error)
	}
}

func TestCheck_Unhealthy(t *testing.T) {
	h := Check(context.Background(), stubPinger{err: errors.New("connection refused")})
	if h.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", h.Status)
	}
	if h.Healthy() {
		t.Error("expected Healthy() to be false")
	}
	if h.Error != "connection refused" {
		t.Errorf("unexpected error text %q", h.Error)
	}
}

func TestCheck_Disabled(t *testing.T) {
	h := Check(context.Background(), nil)
	if h.Status != "disabled" {
		t.Errorf("expected disabled, got %q", h.Status)
	}
	if !h.Healthy() {
		t.Error("a disabled registry must not fail the health check")
	}
}

func TestCheck_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if h := Check(ctx, stubPinger{}); h.Healthy() {
		t.Error("expected a cancelled ping to be unhealthy")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

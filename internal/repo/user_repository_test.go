package repo

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestListOthersRejectsMalformedID(t *testing.T) {
	r := NewUserRepository(nil, zap.NewNop())

	// A malformed caller id must fail outright, never fall through to an
	// unfiltered listing that includes the caller.
	if _, err := r.ListOthers(context.Background(), "not-a-hex-id"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := r.ListOthers(context.Background(), ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

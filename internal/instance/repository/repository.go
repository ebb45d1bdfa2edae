package repository

import (
	"context"
	"errors"

	"github.com/symphonyoss/integration-maintenance/internal/instance"
)

var (
	ErrNotConfigured = errors.New("instance repository not configured")
)

// Repository is the data access needed by a creatorId fix run.
type Repository interface {
	// NormalizeCreator sets the creator field of every non-conforming document to value.
	NormalizeCreator(ctx context.Context, value string) (instance.UpdateResult, error)
	// CountNonConforming re-runs the match query without modifying anything.
	CountNonConforming(ctx context.Context) (int64, error)
	// FindNonConforming returns the current creator value of every document the fix would touch.
	FindNonConforming(ctx context.Context) ([]instance.Snapshot, error)
	// SampleNonConforming returns up to limit non-conforming instances.
	SampleNonConforming(ctx context.Context, limit int64) ([]instance.ConfigInstance, error)
	// RestoreCreators puts back snapshot values on documents still holding value.
	RestoreCreators(ctx context.Context, snaps []instance.Snapshot, value string) (int64, error)
}

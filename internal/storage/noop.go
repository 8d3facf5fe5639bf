package storage

import (
	"context"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

// Store persists order follow-up records
type Store interface {
	SaveFollowup(ctx context.Context, record types.Followup) error
	GetFollowups(ctx context.Context, agentID string) ([]types.Followup, error)
	DeleteFollowup(ctx context.Context, agentID, recordID string) error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveFollowup(_ context.Context, _ types.Followup) error { return nil }
func (s *NoopStore) GetFollowups(_ context.Context, _ string) ([]types.Followup, error) {
	return nil, nil
}
func (s *NoopStore) DeleteFollowup(_ context.Context, _, _ string) error { return nil }

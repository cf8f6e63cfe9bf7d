package session

import (
	"context"

	"debate-sim/server/internal/model"
)

type Store interface {
	Get(ctx context.Context, id string) (*model.DebateState, error)
	Save(ctx context.Context, s *model.DebateState) error
	Delete(ctx context.Context, id string) error
}

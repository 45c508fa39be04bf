package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MJE43/lightgrid/internal/puzzle"
)

// ErrNotFound is returned when a result does not exist.
var ErrNotFound = errors.New("result not found")

// DB represents the database interface
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	SaveResult(ctx context.Context, r puzzle.Result) error
	GetResult(ctx context.Context, id uuid.UUID) (*puzzle.Result, error)
	Leaderboard(ctx context.Context, query LeaderboardQuery) (*LeaderboardPage, error)
	ClearLeaderboard(ctx context.Context) (int64, error)
}

// LeaderboardQuery filters and pages the leaderboard. Only won sessions are
// ranked.
type LeaderboardQuery struct {
	Difficulty string `json:"difficulty,omitempty"`
	Source     string `json:"source,omitempty"`
	Level      string `json:"level,omitempty"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
}

// LeaderboardEntry is one ranked result.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	puzzle.Result
}

// LeaderboardPage represents a paginated leaderboard response
type LeaderboardPage struct {
	Entries    []LeaderboardEntry `json:"entries"`
	TotalCount int                `json:"totalCount"`
	Page       int                `json:"page"`
	PerPage    int                `json:"perPage"`
	TotalPages int                `json:"totalPages"`
}

package repository

import (
	"context"
	"time"

	"opsdesk/internal/domain"
)

// FallbackQuery is the predicate shape shared by both query paths: the query
// router translates it to an index query when search is up and hands it here
// when it is not.
type FallbackQuery struct {
	Text        string
	EntityTypes []string
	Status      string
	OwnerID     string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// SearchOptions distinct filter values offered to clients.
type SearchOptions struct {
	EntityTypes []string `json:"entity_types"`
	Statuses    []string `json:"statuses"`
	Owners      []string `json:"owners"`
}

// SearchFallback answers search queries from the relational store when the
// index is unavailable: always current, no ranking, recency-ordered.
type SearchFallback interface {
	Search(ctx context.Context, q FallbackQuery) ([]domain.SearchDoc, int, error)
	Options(ctx context.Context) (*SearchOptions, error)
}

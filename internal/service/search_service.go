package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"opsdesk/internal/domain"
	"opsdesk/internal/health"
	"opsdesk/internal/repository"
	"opsdesk/internal/search"
	"opsdesk/internal/store"
)

const (
	optionsCacheKey = "opsdesk:search:options"
	optionsCacheTTL = 60 * time.Second
)

// HealthSource exposes the current backend health snapshot.
type HealthSource interface {
	Snapshot() health.Snapshot
	Report(backend health.Backend, ok bool)
}

// IndexSearcher the subset of the index client the router needs.
type IndexSearcher interface {
	Search(ctx context.Context, body map[string]any) ([]search.Hit, int, error)
	Aggregate(ctx context.Context, body map[string]any) (map[string]json.RawMessage, error)
}

// SearchRequest shared predicate shape for both query paths.
type SearchRequest struct {
	Query       string     `json:"query"`
	EntityTypes []string   `json:"entity_types,omitempty"`
	Status      string     `json:"status,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}

// SearchHit one result row. Score is zero on the relational path.
type SearchHit struct {
	domain.SearchDoc
	Score float64 `json:"score,omitempty"`
}

// SearchResponse results plus which path served them. Source is "index" or
// "relational"; Degraded marks the fallback path so clients can hint at
// reduced ranking quality.
type SearchResponse struct {
	Results  []SearchHit `json:"results"`
	Total    int         `json:"total"`
	Source   string      `json:"source"`
	Degraded bool        `json:"degraded"`
}

// SearchService routes queries per request: the index when the health
// snapshot says it is reachable, the relational fallback otherwise. Both
// paths produce the same response shape.
type SearchService interface {
	Results(ctx context.Context, query string, limit, offset int) (*SearchResponse, error)
	AdvancedResults(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Latest(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	Options(ctx context.Context) (*repository.SearchOptions, error)
}

type searchService struct {
	index    IndexSearcher
	fallback repository.SearchFallback
	healthy  HealthSource
	cache    store.KV // nil tolerated: options just skip the cache
	logger   *zap.Logger
}

func NewSearchService(index IndexSearcher, fallback repository.SearchFallback, healthy HealthSource, cache store.KV, logger *zap.Logger) SearchService {
	return &searchService{index: index, fallback: fallback, healthy: healthy, cache: cache, logger: logger}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *searchService) Results(ctx context.Context, query string, limit, offset int) (*SearchResponse, error) {
	return s.AdvancedResults(ctx, SearchRequest{Query: query, Limit: limit, Offset: offset})
}

func (s *searchService) AdvancedResults(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req.Limit, req.Offset = normalizePage(req.Limit, req.Offset)
	if s.healthy.Snapshot().Search {
		resp, err := s.queryIndex(ctx, req, false)
		if err == nil {
			return resp, nil
		}
		// The snapshot was stale. Record the failure and degrade this request.
		s.healthy.Report(health.BackendSearch, false)
		s.logger.Warn("Index query failed, degrading to relational fallback", zap.Error(err))
	}
	return s.queryFallback(ctx, req)
}

func (s *searchService) Latest(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req.Limit, req.Offset = normalizePage(req.Limit, req.Offset)
	if s.healthy.Snapshot().Search {
		resp, err := s.queryIndex(ctx, req, true)
		if err == nil {
			return resp, nil
		}
		s.healthy.Report(health.BackendSearch, false)
		s.logger.Warn("Index query failed, degrading to relational fallback", zap.Error(err))
	}
	// The fallback is already recency-ordered.
	return s.queryFallback(ctx, req)
}

func (s *searchService) queryIndex(ctx context.Context, req SearchRequest, byRecency bool) (*SearchResponse, error) {
	body := buildIndexQuery(req, byRecency)
	hits, total, err := s.index.Search(ctx, body)
	if err != nil {
		return nil, err
	}
	s.healthy.Report(health.BackendSearch, true)

	results := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchHit{SearchDoc: h.Doc, Score: h.Score})
	}
	return &SearchResponse{Results: results, Total: total, Source: "index"}, nil
}

func (s *searchService) queryFallback(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	docs, total, err := s.fallback.Search(ctx, repository.FallbackQuery{
		Text:        req.Query,
		EntityTypes: req.EntityTypes,
		Status:      req.Status,
		OwnerID:     req.OwnerID,
		Since:       req.Since,
		Until:       req.Until,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		return nil, err
	}
	results := make([]SearchHit, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchHit{SearchDoc: d})
	}
	return &SearchResponse{Results: results, Total: total, Source: "relational", Degraded: true}, nil
}

// buildIndexQuery translates the request to an index query body. Tombstones
// are always filtered out.
func buildIndexQuery(req SearchRequest, byRecency bool) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"deleted": false}},
	}
	if len(req.EntityTypes) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"entity_type": req.EntityTypes}})
	}
	if req.Status != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"status": req.Status}})
	}
	if req.OwnerID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"owner_id": req.OwnerID}})
	}
	if req.Since != nil || req.Until != nil {
		rng := map[string]any{}
		if req.Since != nil {
			rng["gte"] = req.Since.Format(time.RFC3339)
		}
		if req.Until != nil {
			rng["lte"] = req.Until.Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{"range": map[string]any{"updated_at": rng}})
	}

	boolQuery := map[string]any{"filter": filters}
	if req.Query != "" {
		boolQuery["must"] = map[string]any{
			"multi_match": map[string]any{
				"query":  req.Query,
				"fields": []string{"title^2", "body"},
			},
		}
	} else {
		boolQuery["must"] = map[string]any{"match_all": map[string]any{}}
	}

	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  req.Offset,
		"size":  req.Limit,
	}
	if byRecency {
		body["sort"] = []map[string]any{{"updated_at": map[string]any{"order": "desc"}}}
	}
	return body
}

func (s *searchService) Options(ctx context.Context) (*repository.SearchOptions, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, optionsCacheKey); err == nil {
			var opts repository.SearchOptions
			if err := json.Unmarshal([]byte(raw), &opts); err == nil {
				return &opts, nil
			}
		} else if !errors.Is(err, store.ErrMiss) {
			s.healthy.Report(health.BackendCache, false)
			s.logger.Warn("Options cache read failed", zap.Error(err))
		}
	}

	opts, err := s.loadOptions(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(opts); err == nil {
			if err := s.cache.Set(ctx, optionsCacheKey, string(raw), optionsCacheTTL); err != nil {
				s.healthy.Report(health.BackendCache, false)
				s.logger.Warn("Options cache write failed", zap.Error(err))
			}
		}
	}
	return opts, nil
}

func (s *searchService) loadOptions(ctx context.Context) (*repository.SearchOptions, error) {
	if s.healthy.Snapshot().Search {
		opts, err := s.optionsFromIndex(ctx)
		if err == nil {
			return opts, nil
		}
		s.healthy.Report(health.BackendSearch, false)
		s.logger.Warn("Index aggregation failed, degrading to relational fallback", zap.Error(err))
	}
	return s.fallback.Options(ctx)
}

type termBuckets struct {
	Buckets []struct {
		Key string `json:"key"`
	} `json:"buckets"`
}

func (s *searchService) optionsFromIndex(ctx context.Context) (*repository.SearchOptions, error) {
	body := map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{{"term": map[string]any{"deleted": false}}},
			},
		},
		"aggs": map[string]any{
			"entity_types": map[string]any{"terms": map[string]any{"field": "entity_type", "size": 20}},
			"statuses":     map[string]any{"terms": map[string]any{"field": "status", "size": 50}},
			"owners":       map[string]any{"terms": map[string]any{"field": "owner_id", "size": 200}},
		},
	}
	aggs, err := s.index.Aggregate(ctx, body)
	if err != nil {
		return nil, err
	}
	s.healthy.Report(health.BackendSearch, true)

	opts := &repository.SearchOptions{}
	opts.EntityTypes = bucketKeys(aggs["entity_types"])
	opts.Statuses = bucketKeys(aggs["statuses"])
	opts.Owners = bucketKeys(aggs["owners"])
	return opts, nil
}

func bucketKeys(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var tb termBuckets
	if err := json.Unmarshal(raw, &tb); err != nil {
		return nil
	}
	keys := make([]string, 0, len(tb.Buckets))
	for _, b := range tb.Buckets {
		if b.Key != "" {
			keys = append(keys, b.Key)
		}
	}
	return keys
}

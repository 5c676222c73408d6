package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"opsdesk/internal/domain"
)

// ErrStaleVersion: the index already holds this id at an equal or higher
// version. Not a failure; the projection converged through another write.
var ErrStaleVersion = errors.New("stale projection version")

// Client is the search-index adapter over the Elasticsearch REST API. All
// transport failures are translated into domain.ErrBackendUnavailable; raw
// driver errors never reach the orchestration layer.
type Client struct {
	http   *resty.Client
	index  string
	logger *zap.Logger
}

func NewClient(addr, index string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(addr).
		SetTimeout(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, index: index, logger: logger}
}

// Ping probes the cluster with a bounded timeout.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Head("/")
	if err != nil {
		return fmt.Errorf("%w: elasticsearch: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: elasticsearch status %d", domain.ErrBackendUnavailable, resp.StatusCode())
	}
	return nil
}

// Upsert writes the projection tagged with its source version. External
// versioning makes the index reject lower versions, so retried tasks that
// complete out of order cannot regress the visible projection.
func (c *Client) Upsert(ctx context.Context, doc *domain.SearchDoc) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(doc).
		SetQueryParam("version", fmt.Sprintf("%d", doc.Version)).
		SetQueryParam("version_type", "external").
		Put(fmt.Sprintf("/%s/_doc/%s", c.index, doc.DocID()))
	if err != nil {
		return fmt.Errorf("%w: elasticsearch upsert: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return ErrStaleVersion
	}
	if resp.IsError() {
		return fmt.Errorf("%w: elasticsearch upsert status %d", domain.ErrBackendUnavailable, resp.StatusCode())
	}
	return nil
}

// Hit is one search result with its relevance score.
type Hit struct {
	Doc   domain.SearchDoc
	Score float64
}

type esHits struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// Search runs a raw query body against the projection index and decodes hits.
// Tombstoned docs are filtered out server-side by the callers' queries.
func (c *Client) Search(ctx context.Context, body map[string]any) ([]Hit, int, error) {
	var result esHits
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("/%s/_search", c.index))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: elasticsearch search: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("%w: elasticsearch search status %d", domain.ErrBackendUnavailable, resp.StatusCode())
	}

	hits := make([]Hit, 0, len(result.Hits.Hits))
	for _, h := range result.Hits.Hits {
		var doc domain.SearchDoc
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			c.logger.Warn("Skipping undecodable search hit", zap.Error(err))
			continue
		}
		hits = append(hits, Hit{Doc: doc, Score: h.Score})
	}
	return hits, result.Hits.Total.Value, nil
}

// Aggregate runs an aggregation-only query and returns the raw buckets.
func (c *Client) Aggregate(ctx context.Context, body map[string]any) (map[string]json.RawMessage, error) {
	var result esHits
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("/%s/_search", c.index))
	if err != nil {
		return nil, fmt.Errorf("%w: elasticsearch aggregate: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: elasticsearch aggregate status %d", domain.ErrBackendUnavailable, resp.StatusCode())
	}
	return result.Aggregations, nil
}

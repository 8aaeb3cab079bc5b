package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civicwatch/models"

	"github.com/go-resty/resty/v2"
)

// Source supplies externally sourced candidate reports. Fetching and
// parsing mechanics live behind this interface; the pipeline only consumes
// the resulting items.
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context) ([]models.RawContent, error)
}

// HTTPSource pulls a JSON array of candidate items from a news aggregation
// endpoint.
type HTTPSource struct {
	name   string
	url    string
	client *resty.Client
}

// NewHTTPSource creates a source for the given endpoint.
func NewHTTPSource(name, url string) *HTTPSource {
	return &HTTPSource{
		name: name,
		url:  url,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "civicwatch/1.0"),
	}
}

func (s *HTTPSource) Name() string {
	return s.name
}

// FetchCandidates requests one batch of candidate items.
func (s *HTTPSource) FetchCandidates(ctx context.Context) ([]models.RawContent, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates from %s: %w", s.name, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("candidate fetch from %s returned status %d", s.name, resp.StatusCode())
	}

	var items []models.RawContent
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, fmt.Errorf("failed to decode candidates from %s: %w", s.name, err)
	}
	return items, nil
}

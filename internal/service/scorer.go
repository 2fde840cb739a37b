package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/go-resty/resty/v2"
)

// ScorerService calls the external scoring collaborator: event text and
// metadata in, numeric quality/fit/relevance scores out.
type ScorerService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// ScorerConfig holds configuration for the scoring collaborator.
type ScorerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewScorerService creates a new scorer client.
func NewScorerService(cfg *ScorerConfig) *ScorerService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	return &ScorerService{
		client:   client,
		model:    cfg.Model,
		endpoint: cfg.BaseURL + "/v1/score",
	}
}

// Scores are the collaborator's numeric assessments, each in [0, 1].
type Scores struct {
	Quality   float64 `json:"quality"`
	Fit       float64 `json:"fit"`
	Relevance float64 `json:"relevance"`
}

type scoreRequest struct {
	Model       string                 `json:"model"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type scoreResponse struct {
	Result *Scores `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Score sends one event to the collaborator.
func (s *ScorerService) Score(ctx context.Context, event *domain.CanonicalEvent) (*Scores, error) {
	req := scoreRequest{
		Model:       s.model,
		Title:       event.Title,
		Description: event.Description,
		Metadata: map[string]interface{}{
			"venue_name":         event.VenueName,
			"category":           event.Category,
			"completeness_score": event.CompletenessScore,
		},
	}

	var resp scoreResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, apperr.External(err, "scorer call failed")
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			msg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, apperr.External(nil, "scorer returned error: %s", msg)
	}
	if resp.Error != nil {
		return nil, apperr.External(nil, "scorer error: %s", resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, apperr.External(nil, "scorer returned no result")
	}

	return resp.Result, nil
}

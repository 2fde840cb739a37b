package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/go-resty/resty/v2"
)

// ClassifierService calls the external classification collaborator: event
// text and metadata in, taxonomy tags plus extracted fields with confidences
// out. The internal model behind the endpoint is out of scope; only the
// contract matters here.
type ClassifierService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// ClassifierConfig holds configuration for the classification collaborator.
type ClassifierConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClassifierService creates a new classifier client.
func NewClassifierService(cfg *ClassifierConfig) *ClassifierService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Every collaborator call carries its own bounded timeout
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	return &ClassifierService{
		client:   client,
		model:    cfg.Model,
		endpoint: cfg.BaseURL + "/v1/classify",
	}
}

// Classification is the collaborator's result for one event.
type Classification struct {
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`

	ExtractedStart  *time.Time `json:"extracted_start,omitempty"`
	StartConfidence float64    `json:"start_confidence,omitempty"`
	ExtractedVenue  string     `json:"extracted_venue,omitempty"`
	VenueConfidence float64    `json:"venue_confidence,omitempty"`
}

type classifyRequest struct {
	Model       string                 `json:"model"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type classifyResponse struct {
	Result *Classification `json:"result"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Classify sends one event to the collaborator.
// Parameters:
//   - ctx: context for cancellation; the client timeout still applies.
//   - event: event to classify.
//
// Returns:
//   - *Classification: taxonomy and extracted fields with confidences.
//   - error: external-service error on any transport or API failure.
func (s *ClassifierService) Classify(ctx context.Context, event *domain.CanonicalEvent) (*Classification, error) {
	req := classifyRequest{
		Model:       s.model,
		Title:       event.Title,
		Description: event.Description,
		Metadata: map[string]interface{}{
			"venue_name": event.VenueName,
			"address":    event.Address,
			"category":   event.Category,
		},
	}
	if event.StartTime != nil {
		req.Metadata["start_time"] = event.StartTime.UTC().Format(time.RFC3339)
	}

	var resp classifyResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, apperr.External(err, "classifier call failed")
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			msg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, apperr.External(nil, "classifier returned error: %s", msg)
	}
	if resp.Error != nil {
		return nil, apperr.External(nil, "classifier error: %s", resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, apperr.External(nil, "classifier returned no result")
	}

	return resp.Result, nil
}

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/metrics"
	"detection-bot/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	DefaultTimeout  = 60 * time.Second
	RequestIdHeader = "X-Request-Id"
)

// PredictionRequest identifies a single call to the inference service.
type PredictionRequest struct {
	RequestId uuid.UUID
	SourceKey string
	ChatId    int64
}

// ServiceError is returned when the inference service answers with a status
// other than 200 or 404.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", types.ErrServiceError, e.StatusCode, e.Body)
}

func (e *ServiceError) Is(target error) bool {
	return target == types.ErrServiceError
}

type Client struct {
	client *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0),
	}
}

// Detect asks the inference service to run detection on an already staged
// object. Exactly one attempt is made.
func (c *Client) Detect(ctx context.Context, remoteKey string, correlationId uuid.UUID) (*api.PredictionSummary, error) {
	return c.Predict(ctx, PredictionRequest{RequestId: correlationId, SourceKey: remoteKey})
}

func (c *Client) Predict(ctx context.Context, req PredictionRequest) (*api.PredictionSummary, error) {
	if req.SourceKey == "" {
		return nil, fmt.Errorf("image key is empty: %w", types.ErrMissingParameter)
	}

	logger := slog.With("correlation_id", req.RequestId, "img_name", req.SourceKey)

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader(RequestIdHeader, req.RequestId.String()).
		SetQueryParam("imgName", req.SourceKey).
		Post("/predict")
	if err != nil {
		logger.Error("inference request failed", "error", err)
		metrics.InferenceRequests.WithLabelValues("transport_failure").Inc()
		return nil, fmt.Errorf("error calling inference service: %w: %w", types.ErrTransportFailure, err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
		var summary api.PredictionSummary
		if err := json.Unmarshal(res.Body(), &summary); err != nil {
			logger.Error("error parsing response from inference service", "error", err)
			metrics.InferenceRequests.WithLabelValues("parse_failure").Inc()
			return nil, fmt.Errorf("error decoding prediction summary: %w: %w", types.ErrParseFailure, err)
		}
		metrics.InferenceRequests.WithLabelValues("success").Inc()
		return &summary, nil

	case http.StatusNotFound:
		logger.Info("inference service found no result", "body", res.String())
		metrics.InferenceRequests.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", types.ErrResultNotFound, res.String())

	default:
		logger.Error("inference service returned error", "status_code", res.StatusCode(), "body", res.String())
		metrics.InferenceRequests.WithLabelValues("service_error").Inc()
		return nil, &ServiceError{StatusCode: res.StatusCode(), Body: res.String()}
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var serr *ServiceError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}

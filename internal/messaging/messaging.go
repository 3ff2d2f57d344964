package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	PredictionEventQueue = "prediction_events"
	RetryDelay           = 5 * time.Second
	MaxConnectRetry      = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// PredictionEventPayload is published once a prediction summary has been
// assembled. Consumers must treat it as advisory.
type PredictionEventPayload struct {
	PredictionId     uuid.UUID
	OriginalImgPath  string
	PredictedImgPath string
	LabelCount       int
	Time             float64
}

type Publisher interface {
	PublishPredictionEvent(ctx context.Context, payload PredictionEventPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}

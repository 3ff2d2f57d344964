package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
)

type PredictionEventHandler func(ctx context.Context, event PredictionEventPayload) error

// ConsumePredictionEvents hands every prediction event from receiver to
// handle until ctx is cancelled or the task channel is closed. Undecodable
// payloads are rejected and handler failures are nacked.
func ConsumePredictionEvents(ctx context.Context, receiver Receiver, handle PredictionEventHandler) {
	tasks := receiver.Tasks()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			processEvent(ctx, task, handle)
		}
	}
}

func processEvent(ctx context.Context, task Task, handle PredictionEventHandler) {
	if task.Type() != PredictionEventQueue {
		slog.Warn("ignoring task from unexpected queue", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	var event PredictionEventPayload
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		slog.Error("error decoding prediction event", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := handle(ctx, event); err != nil {
		slog.Error("error handling prediction event", "prediction_id", event.PredictionId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "prediction_id", event.PredictionId, "error", err)
	}
}

// LogPredictionEvent is a handler that only records the event in the log.
func LogPredictionEvent(ctx context.Context, event PredictionEventPayload) error {
	slog.Info("prediction event",
		"prediction_id", event.PredictionId,
		"original_img_path", event.OriginalImgPath,
		"predicted_img_path", event.PredictedImgPath,
		"label_count", event.LabelCount,
	)
	return nil
}

// StartPredictionEvents returns the publisher the predictor sends events to
// and starts a consumer that hands them to handle. With an empty rabbitMQURL
// the events stay in process. The returned func stops the consumer and
// closes both ends.
func StartPredictionEvents(ctx context.Context, rabbitMQURL string, handle PredictionEventHandler) (Publisher, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	if rabbitMQURL == "" {
		queue := NewInMemoryQueue()
		go ConsumePredictionEvents(ctx, queue, handle)
		return queue, func() {
			cancel()
			queue.Close()
		}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitMQURL)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	receiver, err := NewRabbitMQReceiver(rabbitMQURL)
	if err != nil {
		cancel()
		publisher.Close()
		return nil, nil, err
	}
	go ConsumePredictionEvents(ctx, receiver, handle)

	return publisher, func() {
		cancel()
		receiver.Close()
		publisher.Close()
	}, nil
}

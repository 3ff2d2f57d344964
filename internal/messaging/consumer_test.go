package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTask struct {
	queue   string
	payload []byte
	result  string
}

func (t *recordingTask) Type() string    { return t.queue }
func (t *recordingTask) Payload() []byte { return t.payload }
func (t *recordingTask) Ack() error      { t.result = "ack"; return nil }
func (t *recordingTask) Nack() error     { t.result = "nack"; return nil }
func (t *recordingTask) Reject() error   { t.result = "reject"; return nil }

type channelReceiver struct {
	tasks chan Task
}

func (r *channelReceiver) Tasks() <-chan Task { return r.tasks }
func (r *channelReceiver) Close()             { close(r.tasks) }

func eventTask(t *testing.T, event PredictionEventPayload) *recordingTask {
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return &recordingTask{queue: PredictionEventQueue, payload: data}
}

func TestConsumePredictionEvents(t *testing.T) {
	good := PredictionEventPayload{PredictionId: uuid.New(), LabelCount: 2}
	failing := PredictionEventPayload{PredictionId: uuid.New()}

	tasks := []*recordingTask{
		eventTask(t, good),
		eventTask(t, failing),
		{queue: PredictionEventQueue, payload: []byte("{")},
		{queue: "other_queue", payload: []byte("{}")},
	}

	receiver := &channelReceiver{tasks: make(chan Task, len(tasks))}
	for _, task := range tasks {
		receiver.tasks <- task
	}
	receiver.Close()

	var handled []uuid.UUID
	ConsumePredictionEvents(context.Background(), receiver, func(ctx context.Context, event PredictionEventPayload) error {
		handled = append(handled, event.PredictionId)
		if event.PredictionId == failing.PredictionId {
			return errors.New("handler failed")
		}
		return nil
	})

	assert.Equal(t, []uuid.UUID{good.PredictionId, failing.PredictionId}, handled)
	assert.Equal(t, "ack", tasks[0].result)
	assert.Equal(t, "nack", tasks[1].result)
	assert.Equal(t, "reject", tasks[2].result)
	assert.Equal(t, "reject", tasks[3].result)
}

func TestConsumeFromInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()
	event := PredictionEventPayload{PredictionId: uuid.New(), OriginalImgPath: "photos/a.jpg"}
	require.NoError(t, queue.PublishPredictionEvent(context.Background(), event))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan PredictionEventPayload, 1)
	go ConsumePredictionEvents(ctx, queue, func(ctx context.Context, e PredictionEventPayload) error {
		received <- e
		return nil
	})

	assert.Equal(t, event, <-received)
	require.NoError(t, LogPredictionEvent(ctx, event))
}

func TestStartPredictionEventsInProcess(t *testing.T) {
	received := make(chan PredictionEventPayload, 1)
	publisher, stop, err := StartPredictionEvents(context.Background(), "", func(ctx context.Context, e PredictionEventPayload) error {
		received <- e
		return nil
	})
	require.NoError(t, err)
	defer stop()

	event := PredictionEventPayload{PredictionId: uuid.New(), LabelCount: 1}
	require.NoError(t, publisher.PublishPredictionEvent(context.Background(), event))

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for prediction event")
	}
}

package core

import (
	"testing"

	"detection-bot/internal/core/types"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	detections := []types.Detection{
		{Class: "dog"}, {Class: "person"}, {Class: "dog"}, {Class: "car"}, {Class: "person"}, {Class: "dog"},
	}

	counts := Aggregate(detections)
	assert.Equal(t, []types.ObjectCount{
		{Class: "dog", Count: 3},
		{Class: "person", Count: 2},
		{Class: "car", Count: 1},
	}, counts)

	total := 0
	for _, c := range counts {
		total += c.Count
	}
	assert.Equal(t, len(detections), total)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.NotNil(t, Aggregate(nil))
}

func TestFormatMessage(t *testing.T) {
	assert.Equal(t,
		"Prediction results:\nObject: person Count: 2\nObject: car Count: 1",
		FormatMessage([]types.ObjectCount{{Class: "person", Count: 2}, {Class: "car", Count: 1}}),
	)
	assert.Equal(t, NoObjectsMessage, FormatMessage(nil))
}

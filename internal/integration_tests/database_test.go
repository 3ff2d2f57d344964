//go:build integration

package integrationtests

import (
	"context"
	"testing"
	"time"

	"detection-bot/internal/database"
	"detection-bot/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	db, err := database.NewDatabase(setupPostgresContainer(t, ctx))
	require.NoError(t, err)
	store := database.NewStore(db)

	first := api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/a.jpg",
		PredictedImgPath: "predicted_photos/a-predict.jpg",
		Labels: []api.Label{
			{Class: "person", Cx: 0.5, Cy: 0.5, Width: 0.2, Height: 0.3},
			{Class: "dog", Cx: 0.1, Cy: 0.2, Width: 0.1, Height: 0.1},
			{Class: "person", Cx: 0.8, Cy: 0.5, Width: 0.2, Height: 0.3},
		},
		Time: 1700000000.25,
	}
	second := api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/b.jpg",
		PredictedImgPath: "predicted_photos/b-predict.jpg",
		Labels:           []api.Label{{Class: "dog", Cx: 0.4, Cy: 0.4, Width: 0.3, Height: 0.3}},
		Time:             1700000100.5,
	}

	require.NoError(t, store.SaveSummary(ctx, &first))
	require.NoError(t, store.SaveSummary(ctx, &second))

	got, err := store.GetSummary(ctx, first.PredictionId)
	require.NoError(t, err)
	assert.Equal(t, first, *got)

	list, err := store.ListSummaries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.PredictionId, list[0].PredictionId)

	totals, err := store.ClassTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"person": 2, "dog": 2}, totals)

	_, err = store.GetSummary(ctx, uuid.New())
	assert.ErrorIs(t, err, database.ErrPredictionNotFound)
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "detection_pipeline_outcomes_total",
		Help: "Photo messages processed by the detection pipeline, by final outcome.",
	}, []string{"outcome"})

	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "detection_pipeline_duration_seconds",
		Help:    "Time from receiving a photo message to delivering or dropping the reply.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	InferenceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inference_client_requests_total",
		Help: "Requests issued to the inference service, by result.",
	}, []string{"result"})

	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_predictions_total",
		Help: "Predictions served by the inference service, by result.",
	}, []string{"result"})

	PredictionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictor_prediction_duration_seconds",
		Help:    "Time spent serving a single prediction.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	DetectedObjects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictor_detected_objects_total",
		Help: "Objects detected by the inference service, by class.",
	}, []string{"class"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

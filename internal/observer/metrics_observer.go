package observer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsObserver exports scan events as Prometheus metrics
type MetricsObserver struct {
	framesAnalyzed   *prometheus.CounterVec
	framesSkipped    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	detections       *prometheus.CounterVec
	cameraEvents     *prometheus.CounterVec
	diagnoses        *prometheus.CounterVec
	imageFetches     *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// NewMetricsObserver registers the scan metrics with reg
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	factory := promauto.With(reg)
	return &MetricsObserver{
		framesAnalyzed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_frames_analyzed_total",
				Help: "Total number of frames run through the colour scan",
			},
			[]string{"source"},
		),
		framesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_frames_skipped_total",
				Help: "Scan loop ticks that had no new frame to analyze",
			},
			[]string{"reason"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "plantscan_analysis_duration_seconds",
				Help:    "Time spent scanning one frame",
				Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"source"},
		),
		detections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_detections_total",
				Help: "Detections reported, by severity",
			},
			[]string{"severity"},
		),
		cameraEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_camera_events_total",
				Help: "Camera lifecycle events",
			},
			[]string{"event"},
		),
		diagnoses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_diagnoses_total",
				Help: "AI diagnosis requests by outcome",
			},
			[]string{"outcome"},
		),
		imageFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantscan_image_fetches_total",
				Help: "Static scan image fetches by outcome",
			},
			[]string{"outcome"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "plantscan_active_sessions",
				Help: "Number of live scan sessions",
			},
		),
	}
}

// OnEvent handles scan events by updating metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ScanEvent) {
	switch event.EventType {
	case SessionCreated:
		o.activeSessions.Inc()
	case SessionClosed:
		o.activeSessions.Dec()
	case CameraStarted, CameraStopped, CameraFailed, ScanStarted, ScanPaused:
		o.cameraEvents.WithLabelValues(string(event.EventType)).Inc()
	case FrameAnalyzed:
		source := event.Source
		if source == "" {
			source = SourceLive
		}
		o.framesAnalyzed.WithLabelValues(source).Inc()
		o.analysisDuration.WithLabelValues(source).Observe(event.ProcessingTime.Seconds())
		for _, d := range event.Detections {
			o.detections.WithLabelValues(string(d.Severity)).Inc()
		}
	case FrameSkipped:
		o.framesSkipped.WithLabelValues(event.Reason).Inc()
	case DiagnosisCompleted:
		o.diagnoses.WithLabelValues("completed").Inc()
	case DiagnosisFailed:
		o.diagnoses.WithLabelValues("failed").Inc()
	case DiagnosisDropped:
		o.diagnoses.WithLabelValues("dropped").Inc()
	case ImageFetched:
		o.imageFetches.WithLabelValues("success").Inc()
	case ImageFetchFailed:
		o.imageFetches.WithLabelValues("failure").Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

package dispatch

import (
	"time"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatch outcomes per service.
type Metrics struct {
	posts    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the dispatch collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		posts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multipost_posts_total",
				Help: "Posts attempted per service, by result",
			},
			[]string{"service", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "multipost_post_duration_seconds",
				Help:    "Time spent posting to a service",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),
	}
}

func (m *Metrics) observe(service multipost.ServiceName, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.posts.WithLabelValues(string(service), result).Inc()
	m.duration.WithLabelValues(string(service)).Observe(took.Seconds())
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k-negishi/eventboard/internal/domain"
)

const namespace = "eventboard"

// Metrics 一覧生成に関するコレクター群
type Metrics struct {
	registry *prometheus.Registry
	builds   *prometheus.CounterVec
	events   *prometheus.GaugeVec
	duration prometheus.Histogram
}

// New 専用のレジストリにコレクターを登録して返す
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_builds_total",
			Help:      "Number of listing builds by result.",
		}, []string{"result"}),
		events: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listing_events",
			Help:      "Events in the latest listing by temporal class.",
		}, []string{"temporal"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "listing_build_duration_seconds",
			Help:      "Time spent building a listing.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.builds, m.events, m.duration)
	return m
}

// ObserveBuild 一覧生成1回分の結果を記録
//
// 失敗時は件数のゲージを更新しない。
func (m *Metrics) ObserveBuild(elapsed time.Duration, counts map[domain.Temporal]int, err error) {
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.builds.WithLabelValues("error").Inc()
		return
	}
	m.builds.WithLabelValues("success").Inc()
	for _, t := range []domain.Temporal{domain.Current, domain.Future, domain.Past} {
		m.events.WithLabelValues(t.String()).Set(float64(counts[t]))
	}
}

// Registry テスト等で直接参照するためのレジストリ
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 用のハンドラー
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

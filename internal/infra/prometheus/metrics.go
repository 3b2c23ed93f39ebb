package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fraglink"

// Metrics bundles every collector the service exports. All of them live on
// Registry, never on the package default, so separate instances do not
// collide.
type Metrics struct {
	Registry *prom.Registry

	HTTPRequestsTotal   *prom.CounterVec
	HTTPRequestDuration *prom.HistogramVec
	HTTPRequestsActive  prom.Gauge

	LinksCreatedTotal   prom.Counter
	ResolvesTotal       *prom.CounterVec
	VisitsRecordedTotal prom.Counter
	VisitEventsConsumed prom.Counter

	StoreLinks         prom.Gauge
	StoreActiveLinks   prom.Gauge
	StoreExpiredLinks  prom.Gauge
	StoreVisits        prom.Gauge
	StoreSaveConflicts prom.Gauge
}

// NewMetrics registers all collectors on reg. Passing nil creates a private
// registry.
func NewMetrics(reg *prom.Registry) *Metrics {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and method.",
			Buckets:   prom.DefBuckets,
		}, []string{"route", "method"}),
		HTTPRequestsActive: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_active",
			Help:      "Requests currently in flight.",
		}),

		LinksCreatedTotal: factory.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created.",
		}),
		ResolvesTotal: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "resolves_total",
			Help:      "Redirect resolutions, by outcome.",
		}, []string{"outcome"}),
		VisitsRecordedTotal: factory.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Visits appended to link records.",
		}),
		VisitEventsConsumed: factory.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "visit_events_consumed_total",
			Help:      "Visit events drained from the stream.",
		}),

		StoreLinks: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_links",
			Help:      "Link records in the store.",
		}),
		StoreActiveLinks: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_active_links",
			Help:      "Link records that have not expired.",
		}),
		StoreExpiredLinks: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_expired_links",
			Help:      "Link records past their expiry.",
		}),
		StoreVisits: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_visits",
			Help:      "Visits recorded across all links.",
		}),
		StoreSaveConflicts: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_save_conflicts",
			Help:      "Optimistic write conflicts observed by the store.",
		}),
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VisitsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_visits_recorded_total",
		Help: "Page views counted by the visit aggregator.",
	})
	PresenceTouches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_presence_touches_total",
		Help: "Session refreshes handled by the presence tracker.",
	})
	PresenceEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_presence_evicted_total",
		Help: "Stale sessions removed by the sweep on write.",
	})
	PresenceMalformed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_presence_malformed_total",
		Help: "Presence payloads that could not be decoded and were treated as empty.",
	})
	LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_live_sessions",
		Help: "Live sessions seen by the most recent touch or read.",
	})
	StorageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_storage_errors_total",
		Help: "Storage failures by primitive.",
	}, []string{"op"})
	PageViews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_page_views_total",
		Help: "Tracking requests by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(VisitsRecorded, PresenceTouches, PresenceEvicted, PresenceMalformed, LiveSessions, StorageErrors, PageViews)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

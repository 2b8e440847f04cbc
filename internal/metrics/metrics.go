package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Redirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redirect_requests_total",
		Help: "Total successful redirect resolutions.",
	})
	Shortens = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shorten_requests_total",
		Help: "Total mappings created.",
	})
	Deletes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delete_requests_total",
		Help: "Total mappings deleted.",
	})
	CacheHit = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hit_total",
		Help: "Cache hits.",
	}, []string{"kind"})
	CacheMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_miss_total",
		Help: "Cache misses.",
	}, []string{"kind"})
	AllocRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "code_alloc_retries_total",
		Help: "Generated codes rejected for being reserved or taken.",
	})
)

func init() {
	prometheus.MustRegister(Redirects, Shortens, Deletes, CacheHit, CacheMiss, AllocRetries)
}

func Handler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

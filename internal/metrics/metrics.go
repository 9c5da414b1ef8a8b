// Package metrics exposes crawl progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitecrawl"

// Collector counts crawl events per site. It implements crawler.Observer.
type Collector struct {
	fetches    *prometheus.CounterVec
	visits     *prometheus.CounterVec
	pageBytes  *prometheus.HistogramVec
	discovered *prometheus.CounterVec
	queued     *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	stops      *prometheus.CounterVec
}

// NewCollector creates the crawl metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of dispatched fetches, labeled by status code.",
			},
			[]string{"site", "status_code"},
		),
		visits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visits_total",
				Help:      "Total number of accepted pages, labeled by content type.",
			},
			[]string{"site", "content_type"},
		),
		pageBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_size_bytes",
				Help:      "Size of accepted pages in bytes.",
				Buckets:   []float64{1 << 10, 10 << 10, 100 << 10, 1 << 20},
			},
			[]string{"site"},
		),
		discovered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_discovered_total",
				Help:      "Total number of extracted links, labeled by scope.",
			},
			[]string{"site", "scope"},
		),
		queued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frontier_pushes_total",
				Help:      "Total number of URLs added to the frontier.",
			},
			[]string{"site"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "urls_rejected_total",
				Help:      "Total number of frontier entries dropped before fetching, labeled by reason.",
			},
			[]string{"site", "reason"},
		),
		stops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawls_finished_total",
				Help:      "Total number of finished crawls, labeled by stop reason.",
			},
			[]string{"site", "reason"},
		),
	}

	for _, col := range []prometheus.Collector{
		c.fetches, c.visits, c.pageBytes, c.discovered, c.queued, c.rejected, c.stops,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// FetchCompleted counts one fetch.
func (c *Collector) FetchCompleted(site string, statusCode int) {
	c.fetches.WithLabelValues(site, strconv.Itoa(statusCode)).Inc()
}

// PageVisited counts one accepted page and observes its size.
func (c *Collector) PageVisited(site, contentType string, sizeBytes int64) {
	c.visits.WithLabelValues(site, contentType).Inc()
	c.pageBytes.WithLabelValues(site).Observe(float64(sizeBytes))
}

// LinkDiscovered counts one extracted link.
func (c *Collector) LinkDiscovered(site string, withinSite bool) {
	scope := "outside"
	if withinSite {
		scope = "within"
	}
	c.discovered.WithLabelValues(site, scope).Inc()
}

// URLQueued counts one frontier push.
func (c *Collector) URLQueued(site string) {
	c.queued.WithLabelValues(site).Inc()
}

// URLRejected counts one dropped frontier entry.
func (c *Collector) URLRejected(site, reason string) {
	c.rejected.WithLabelValues(site, reason).Inc()
}

// CrawlStopped counts one finished crawl.
func (c *Collector) CrawlStopped(site string, reason model.StopReason) {
	c.stops.WithLabelValues(site, string(reason)).Inc()
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, ln, g, logger)
}

func serve(ctx context.Context, ln net.Listener, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("exposing prometheus metrics", "address", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

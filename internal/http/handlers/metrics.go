package handlers

import (
	"bytes"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
)

var (
	requestsTotal          *prometheus.CounterVec
	requestDurationBuckets *prometheus.HistogramVec
)

// InitMetrics registers the request metrics. Call once at startup.
func InitMetrics() {
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swiftroute",
			Name:      "requests_total",
			Help:      "Total number of authenticated API requests.",
		},
		[]string{"client", "endpoint", "method", "status"},
	)
	requestDurationBuckets = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swiftroute",
			Name:      "request_duration_seconds",
			Help:      "Histogram of API request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"client", "endpoint", "method"},
	)
	prometheus.MustRegister(requestsTotal, requestDurationBuckets)
}

// ObserveRequest feeds one completed request into the metrics. No-op until
// InitMetrics has run (unit tests exercise middleware without a registry).
func ObserveRequest(client, endpoint, method string, status int, elapsed time.Duration) {
	if requestsTotal == nil {
		return
	}
	requestsTotal.WithLabelValues(client, endpoint, method, strconv.Itoa(status)).Inc()
	requestDurationBuckets.WithLabelValues(client, endpoint, method).Observe(elapsed.Seconds())
}

// ClientMetrics exposes the prometheus families filtered down to the
// authenticated client's own series, so external clients can scrape their
// usage without seeing anyone else's.
func ClientMetrics() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		identity, ok := MustIdentity(ctx)
		if !ok {
			return
		}
		writeMetrics(ctx, identity.Email)
	}
}

// OperatorMetrics exposes the full, unfiltered registry. Routed behind the
// service credential.
func OperatorMetrics() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		writeMetrics(ctx, "")
	}
}

// writeMetrics encodes the gathered families in text exposition format.
// A non-empty client filters label "client" to that value; families without
// the label pass through untouched.
func writeMetrics(ctx *fasthttp.RequestCtx, client string) {
	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		WriteInternalError(ctx, err)
		return
	}

	filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
	for _, mf := range metricFamilies {
		if client == "" {
			filtered = append(filtered, mf)
			continue
		}

		hasClientLabel := false
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "client" {
					hasClientLabel = true
					break
				}
			}
			if hasClientLabel {
				break
			}
		}
		if !hasClientLabel {
			filtered = append(filtered, mf)
			continue
		}

		var kept []*dto.Metric
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "client" && l.GetValue() == client {
					kept = append(kept, m)
					break
				}
			}
		}
		if len(kept) == 0 {
			continue
		}
		filtered = append(filtered, &dto.MetricFamily{
			Name:   mf.Name,
			Help:   mf.Help,
			Type:   mf.Type,
			Metric: kept,
		})
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range filtered {
		if err := encoder.Encode(mf); err != nil {
			WriteInternalError(ctx, err)
			return
		}
	}

	ctx.SetContentType(string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	ctx.Response.Header.Set("Cache-Control", "no-store")
	ctx.SetBody(buf.Bytes())
}

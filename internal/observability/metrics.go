package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Collector bundles the Prometheus metrics of the SDH service: RPC traffic
// and the inventory gauges.
type Collector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	TransportLinks prometheus.Gauge
	ContainerLinks prometheus.Gauge
	TributaryLinks prometheus.Gauge
	Services       prometheus.Gauge
}

// NewCollector registers the service metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdh_rpc_requests_total",
		Help: "Handled SDH RPCs by service, method and gRPC status code.",
	}, []string{"service", "method", "code"}), "sdh_rpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sdh_rpc_request_duration_seconds",
		Help:    "SDH RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "method"}), "sdh_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	gauges := make([]prometheus.Gauge, 4)
	for i, g := range []struct{ name, help string }{
		{"sdh_transport_links", "Transport links in the inventory."},
		{"sdh_container_links", "Container links in the inventory."},
		{"sdh_tributary_links", "Tributary links in the inventory."},
		{"sdh_services", "Services in the inventory."},
	} {
		gauges[i], err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
	}

	return &Collector{
		gatherer:       gatherer,
		RPCRequests:    requests,
		RPCDurations:   durations,
		TransportLinks: gauges[0],
		ContainerLinks: gauges[1],
		TributaryLinks: gauges[2],
		Services:       gauges[3],
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// Handler exposes a /metrics handler over the collector's gatherer.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetInventoryCounts satisfies inventory.MetricsRecorder so the inventory
// drives the gauges after every commit.
func (c *Collector) SetInventoryCounts(transportLinks, containerLinks, tributaryLinks, services int) {
	if c == nil {
		return
	}
	for _, g := range []struct {
		gauge prometheus.Gauge
		value int
	}{
		{c.TransportLinks, transportLinks},
		{c.ContainerLinks, containerLinks},
		{c.TributaryLinks, tributaryLinks},
		{c.Services, services},
	} {
		if g.gauge != nil {
			g.gauge.Set(float64(g.value))
		}
	}
}

// SplitMethod parses a fully-qualified gRPC method name into service and
// method components, returning "unknown" for parts it cannot find.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register registers c, or returns the collector of the same type already
// registered under name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C, name string) (C, error) {
	if err := reg.Register(c); err != nil {
		var zero C
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return zero, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return existing, nil
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	return register(reg, gauge, name)
}

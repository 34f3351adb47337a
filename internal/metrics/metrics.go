package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halcyon-engine/netcore/internal/flog"
)

var (
	SendQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netcore_send_queue_depth",
		Help: "Datagrams waiting in the send queue.",
	})
	SendQueueBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netcore_send_queue_bytes",
		Help: "Payload bytes waiting in the send queue.",
	})
	DatagramsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_datagrams_sent_total",
		Help: "Datagrams emitted on the UDP socket.",
	})
	DatagramsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_datagrams_received_total",
		Help: "Datagrams accepted from bound peers.",
	})
	DatagramsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_datagrams_dropped_total",
		Help: "Datagrams discarded because the sender was not bound.",
	})
	ReliableSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_reliable_sent_total",
		Help: "Messages sent over the control channel.",
	})
	ReliableReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netcore_reliable_received_total",
		Help: "Messages received over the control channel.",
	})
)

// Server exposes /metrics when a listen address is configured.
type Server struct {
	srv *http.Server
}

// Serve starts the metrics listener. A nil Server is returned when addr is
// empty; all its methods are safe on nil.
func Serve(addr string) *Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &Server{srv: &http.Server{Addr: addr, Handler: mux}}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			flog.Warnf("metrics listener failed: %v", err)
		}
	}()
	flog.Infof("metrics listening on %s", addr)
	return s
}

// Close stops the metrics listener.
func (s *Server) Close() {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.srv.Shutdown(ctx)
}

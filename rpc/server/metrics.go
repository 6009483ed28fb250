package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/kvs/rpc/common"
)

// --------------------------------------------------------------------------
// Request Metrics
// --------------------------------------------------------------------------

var decodeErrorsTotal = metrics.NewCounter("kvs_rpc_decode_errors_total")

// requestMetrics are the metrics of one message type
type requestMetrics struct {
	total    *metrics.Counter
	errors   *metrics.Counter
	duration *metrics.Histogram
}

func newRequestMetrics(t common.MessageType) requestMetrics {
	return requestMetrics{
		total:    metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_rpc_requests_total{type=%q}`, t)),
		errors:   metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_rpc_request_errors_total{type=%q}`, t)),
		duration: metrics.GetOrCreateHistogram(fmt.Sprintf(`kvs_rpc_request_duration_seconds{type=%q}`, t)),
	}
}

var requestMetricsByType = map[common.MessageType]requestMetrics{
	common.MsgTKVSet:    newRequestMetrics(common.MsgTKVSet),
	common.MsgTKVGet:    newRequestMetrics(common.MsgTKVGet),
	common.MsgTKVRemove: newRequestMetrics(common.MsgTKVRemove),
	common.MsgTInfo:     newRequestMetrics(common.MsgTInfo),
	common.MsgTUnknown:  newRequestMetrics(common.MsgTUnknown),
}

// observeRequest records one handled request
func observeRequest(t common.MessageType, start time.Time, resp *common.Message) {
	m, ok := requestMetricsByType[t]
	if !ok {
		m = requestMetricsByType[common.MsgTUnknown]
	}
	m.total.Inc()
	if resp.MsgType == common.MsgTError {
		m.errors.Inc()
	}
	m.duration.UpdateDuration(start)
}

// --------------------------------------------------------------------------
// Metrics Endpoint
// --------------------------------------------------------------------------

// metricsServer exposes all metrics of the process in the Prometheus text format on /metrics
type metricsServer struct {
	srv      *http.Server
	listener net.Listener
}

// startMetricsServer binds the endpoint and serves the metrics in the background
func startMetricsServer(endpoint string) (*metricsServer, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	m := &metricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}

	go func() {
		if err := m.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("Metrics endpoint stopped: %v", err)
		}
	}()

	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return m, nil
}

func (m *metricsServer) Addr() net.Addr {
	return m.listener.Addr()
}

func (m *metricsServer) Close() error {
	return m.srv.Close()
}

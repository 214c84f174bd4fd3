package ingest

import (
	"io"
	"log/slog"
	"net/http"

	"waterwatch/internal/metrics"
)

// HTTPHandler decodes JSON readings and forwards them to sink.
// Params: sink receives readings, max body limits payload size.
// Returns: HTTP handler for the reading push endpoint.
type HTTPHandler struct {
	sink        ReadingSink
	maxBodySize int64
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewHTTPHandler creates ingest HTTP handler.
// Params: sink, max request body size in bytes, optional logger and metrics.
// Returns: configured handler.
func NewHTTPHandler(sink ReadingSink, maxBodySize int64, logger *slog.Logger, m *metrics.Metrics) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize, logger: logger, metrics: m}
}

// ServeHTTP handles one incoming reading request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/push result.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	frames, err := decodePayload(body)
	if err != nil {
		h.metrics.ObserveReading(metrics.ResultInvalid)
		if h.logger != nil {
			h.logger.Warn("http ingest decode failed", "remote", request.RemoteAddr, "error", err.Error())
		}
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := pushFrames(h.sink, frames); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}

package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"waterwatch/internal/domain"
	"waterwatch/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testSink struct {
	mu        sync.Mutex
	readings  []domain.Reading
	order     []string
	pushCalls int
	empty     int
	err       error
}

func (s *testSink) Push(reading domain.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushCalls++
	if s.err != nil {
		return s.err
	}
	s.readings = append(s.readings, reading)
	s.order = append(s.order, "reading")
	return nil
}

func (s *testSink) PushEmpty() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.empty++
	if s.err != nil {
		return s.err
	}
	s.order = append(s.order, "empty")
	return nil
}

func TestHTTPHandlerAcceptsSingleReading(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	handler := NewHTTPHandler(sink, 1<<20, nil, nil)
	request := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(testReadingJSON(30.0)))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if len(sink.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(sink.readings))
	}
	if v, ok := sink.readings[0].Temperature.Get(); !ok || v != 30.0 {
		t.Fatalf("unexpected temperature: %v", sink.readings[0].Temperature)
	}
}

func TestHTTPHandlerAcceptsBufferedBatchInOrder(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	handler := NewHTTPHandler(sink, 1<<20, nil, nil)
	payload := fmt.Sprintf("[%s,null,%s]", testReadingJSON(24.0), testReadingJSON(40.0))
	request := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(payload))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if strings.Join(sink.order, ",") != "reading,empty,reading" {
		t.Fatalf("unexpected order: %v", sink.order)
	}
}

func TestHTTPHandlerNullBodyIsNoData(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"null", "", "  "} {
		sink := &testSink{}
		handler := NewHTTPHandler(sink, 1<<20, nil, nil)
		request := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
		response := httptest.NewRecorder()

		handler.ServeHTTP(response, request)
		if response.Code != http.StatusAccepted {
			t.Fatalf("body %q: expected status %d, got %d", body, http.StatusAccepted, response.Code)
		}
		if sink.empty != 1 || sink.pushCalls != 0 {
			t.Fatalf("body %q: unexpected sink calls push=%d empty=%d", body, sink.pushCalls, sink.empty)
		}
	}
}

func TestHTTPHandlerRejectsInvalidPayloads(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	for _, body := range []string{"[]", "{", `{"tempC":"hot"}`, `{"tempC":1} {"tempC":2}`} {
		sink := &testSink{}
		handler := NewHTTPHandler(sink, 1<<20, nil, m)
		request := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
		response := httptest.NewRecorder()

		handler.ServeHTTP(response, request)
		if response.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected status %d, got %d", body, http.StatusBadRequest, response.Code)
		}
		if sink.pushCalls != 0 || sink.empty != 0 {
			t.Fatalf("body %q: unexpected sink calls", body)
		}
	}
	if got := testutil.ToFloat64(m.ReadingsTotal.WithLabelValues(metrics.ResultInvalid)); got != 4 {
		t.Fatalf("expected 4 invalid readings, got %v", got)
	}
}

func TestHTTPHandlerRejectsMethodAndOversizedBody(t *testing.T) {
	t.Parallel()

	sink := &testSink{}
	handler := NewHTTPHandler(sink, 16, nil, nil)

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/readings", nil))
	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, response.Code)
	}

	response = httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(testReadingJSON(24))))
	if response.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, response.Code)
	}
}

func TestHTTPHandlerReturnsServiceUnavailableOnPushError(t *testing.T) {
	t.Parallel()

	sink := &testSink{err: errors.New("session stopped")}
	handler := NewHTTPHandler(sink, 1<<20, nil, nil)
	request := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(testReadingJSON(24)))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
}

func testReadingJSON(temp float64) string {
	return fmt.Sprintf(`{"tempC":%.1f,"pH":7.0,"ec_uS":1000,"tds_ppm":300,"ntu":0.5,"orp_mV":700}`, temp)
}

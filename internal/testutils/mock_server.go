package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// MockExchangeRateServer imitates the exchangerate-api.com v6 "latest"
// endpoint: GET /v6/{key}/latest/{CODE}.
type MockExchangeRateServer struct {
	server *httptest.Server

	mutex      sync.Mutex
	rates      map[string]map[string]float64
	errorTypes map[string]string
	requests   map[string]int
	ttl        time.Duration
}

// NewMockExchangeRateServer serves USD and EUR tables and accepts TestAPIKey.
func NewMockExchangeRateServer() *MockExchangeRateServer {
	mock := &MockExchangeRateServer{
		rates: map[string]map[string]float64{
			"USD": {"USD": 1, "EUR": 0.92, "GBP": 0.79, "JPY": 149.5},
			"EUR": {"EUR": 1, "USD": 1.087, "GBP": 0.86, "JPY": 162.4},
		},
		errorTypes: make(map[string]string),
		requests:   make(map[string]int),
		ttl:        24 * time.Hour,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handler))
	return mock
}

// SetRates replaces the table served for base.
func (m *MockExchangeRateServer) SetRates(base string, rates map[string]float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rates[base] = rates
}

// SetErrorType makes requests for base fail with the given provider error-type.
func (m *MockExchangeRateServer) SetErrorType(base, errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errorTypes[base] = errorType
}

// Requests returns how many requests were made for base.
func (m *MockExchangeRateServer) Requests(base string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requests[base]
}

func (m *MockExchangeRateServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// /{version}/{key}/latest/{code}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[2] != "latest" {
		m.writeError(w, http.StatusNotFound, "malformed-request")
		return
	}
	key, base := parts[1], parts[3]

	m.mutex.Lock()
	m.requests[base]++
	errorType, failing := m.errorTypes[base]
	rates, known := m.rates[base]
	ttl := m.ttl
	m.mutex.Unlock()

	switch {
	case key != TestAPIKey:
		m.writeError(w, http.StatusForbidden, "invalid-key")
	case failing:
		m.writeError(w, http.StatusBadRequest, errorType)
	case !known:
		m.writeError(w, http.StatusNotFound, "unsupported-code")
	default:
		now := time.Now()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":                "success",
			"documentation":         "https://www.exchangerate-api.com/docs",
			"terms_of_use":          "https://www.exchangerate-api.com/terms",
			"time_last_update_unix": now.Unix(),
			"time_last_update_utc":  now.UTC().Format(time.RFC1123Z),
			"time_next_update_unix": now.Add(ttl).Unix(),
			"time_next_update_utc":  now.Add(ttl).UTC().Format(time.RFC1123Z),
			"base_code":             base,
			"conversion_rates":      rates,
		})
	}
}

func (m *MockExchangeRateServer) writeError(w http.ResponseWriter, status int, errorType string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIErrorPayload{
		Result:        "error",
		Documentation: "https://www.exchangerate-api.com/docs",
		TermsOfUse:    "https://www.exchangerate-api.com/terms",
		ErrorType:     errorType,
	})
}

// URL returns the mock server URL
func (m *MockExchangeRateServer) URL() string {
	return m.server.URL
}

// Close closes the mock server
func (m *MockExchangeRateServer) Close() {
	m.server.Close()
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalfonso89/currency-converter/internal/metrics"
	"github.com/dalfonso89/currency-converter/internal/models"
	"github.com/dalfonso89/currency-converter/internal/service"
	"github.com/dalfonso89/currency-converter/internal/testutils"
)

type stubPinger struct {
	err error
}

func (pinger stubPinger) Ping(ctx context.Context) error {
	return pinger.err
}

func newTestRouter(source service.RateSource, cache Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	handlerMetrics := metrics.NewMetrics(registry)
	ratesService := service.NewRatesService(testutils.NewFailingStore(), source, testutils.TestAPIKey, testutils.MockLogger(), handlerMetrics)

	return NewHandlers(HandlerConfig{
		Logger:       testutils.MockLogger(),
		RatesService: ratesService,
		Cache:        cache,
		Metrics:      handlerMetrics,
		Gatherer:     registry,
	}).SetupRoutes()
}

func perform(router http.Handler, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var response models.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response
}

func TestHandlers_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		cache          Pinger
		expectedStatus string
		expectedCache  string
	}{
		{"no cache", nil, "healthy", "disabled"},
		{"cache reachable", stubPinger{}, "healthy", "ok"},
		{"cache broken", stubPinger{err: errors.New("database is locked")}, "degraded", "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := perform(newTestRouter(testutils.NewFakeRateSource(), tt.cache), "/health")
			require.Equal(t, http.StatusOK, recorder.Code)

			var health models.HealthCheck
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &health))
			assert.Equal(t, tt.expectedStatus, health.Status)
			assert.Equal(t, tt.expectedCache, health.Cache)
			assert.Equal(t, "1.0.0", health.Version)
			assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))
		})
	}
}

func TestHandlers_GetRatesByBase(t *testing.T) {
	source := testutils.NewFakeRateSource().WithSnapshot(testutils.MockSnapshot("USD", time.Hour))
	router := newTestRouter(source, nil)

	recorder := perform(router, "/api/v1/rates/usd")
	require.Equal(t, http.StatusOK, recorder.Code)

	var snapshot models.RateSnapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snapshot))
	assert.Equal(t, "USD", snapshot.BaseCode)
	assert.Equal(t, 0.79, snapshot.ConversionRates["GBP"])

	recorder = perform(router, "/api/v1/rates/US1")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_input", decodeError(t, recorder).Error)

	recorder = perform(router, "/api/v1/rates/XYZ")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "unsupported_code", decodeError(t, recorder).Error)
}

func TestHandlers_Convert(t *testing.T) {
	source := testutils.NewFakeRateSource().WithSnapshot(testutils.MockSnapshot("USD", time.Hour))
	router := newTestRouter(source, nil)

	recorder := perform(router, "/api/v1/convert?from=USD&to=GBP&amount=10")
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var result models.ConvertResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, models.ConvertResponse{From: "USD", To: "GBP", Amount: 10, Rate: 0.79, Converted: 7.9}, result)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedError  string
	}{
		{"missing amount", "/api/v1/convert?from=USD&to=GBP", http.StatusBadRequest, "invalid_input"},
		{"negative amount", "/api/v1/convert?from=USD&to=GBP&amount=-5", http.StatusBadRequest, "invalid_input"},
		{"lowercase code", "/api/v1/convert?from=usd&to=GBP&amount=5", http.StatusBadRequest, "invalid_input"},
		{"unknown target", "/api/v1/convert?from=USD&to=CHF&amount=5", http.StatusNotFound, "currency_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := perform(router, tt.target)
			assert.Equal(t, tt.expectedStatus, recorder.Code)
			assert.Equal(t, tt.expectedError, decodeError(t, recorder).Error)
		})
	}
}

func TestHandlers_Convert_RemoteFailures(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"quota reached", models.NewAPIError("quota-reached", "USD"), http.StatusTooManyRequests},
		{"invalid key", models.NewAPIError("invalid-key", "USD"), http.StatusBadGateway},
		{"transport", models.NewTransportError(errors.New("connection refused")), http.StatusBadGateway},
		{"malformed", models.NewAPIError("malformed-request", "USD"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(testutils.NewFakeRateSource().WithError(tt.err), nil)

			recorder := perform(router, "/api/v1/convert?from=USD&to=GBP&amount=1")
			assert.Equal(t, tt.expectedStatus, recorder.Code)
			assert.Equal(t, tt.err.Error(), decodeError(t, recorder).Message)
		})
	}
}

func TestHandlers_Metrics(t *testing.T) {
	source := testutils.NewFakeRateSource().WithSnapshot(testutils.MockSnapshot("USD", time.Hour))
	router := newTestRouter(source, nil)

	require.Equal(t, http.StatusOK, perform(router, "/api/v1/convert?from=USD&to=EUR&amount=3").Code)

	recorder := perform(router, "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, "conversions_total 1"), body)
	assert.Contains(t, body, "rate_remote_fetches_total")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/convert",status_code="200"} 1`)
}

func TestHandlers_CORSPreflight(t *testing.T) {
	router := newTestRouter(testutils.NewFakeRateSource(), nil)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/api/v1/convert", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{models.NewInvalidInputError("bad"), http.StatusBadRequest},
		{models.NewCurrencyNotFoundError("USD", "CHF"), http.StatusNotFound},
		{models.NewAPIError("unsupported-code", "XYZ"), http.StatusNotFound},
		{models.NewAPIError("inactive-account", "USD"), http.StatusBadGateway},
		{models.NewAPIError("brand-new", "USD"), http.StatusBadGateway},
		{models.NewDeserializeError("bad body", nil), http.StatusBadGateway},
		{models.NewStorageError("locked", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.err))
		})
	}
}

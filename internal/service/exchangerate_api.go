package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dalfonso89/currency-converter/internal/config"
	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/models"
)

// ExchangeRateAPIClient talks to the exchangerate-api.com "latest" endpoint:
// GET {base}/{version}/{key}/latest/{CODE}
type ExchangeRateAPIClient struct {
	baseURL    string
	version    string
	logger     *logger.Logger
	httpClient *http.Client
}

// NewExchangeRateAPIClient creates a client from configuration. A zero
// HTTPTimeout leaves the transport default in place; requests are never retried.
func NewExchangeRateAPIClient(configuration *config.Config, logger *logger.Logger) *ExchangeRateAPIClient {
	httpTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &ExchangeRateAPIClient{
		baseURL:    strings.TrimRight(configuration.APIBaseURL, "/"),
		version:    configuration.APIVersion,
		logger:     logger,
		httpClient: &http.Client{Timeout: configuration.HTTPTimeout, Transport: httpTransport},
	}
}

// Fetch requests the latest rates for baseCode authenticated with apiKey.
func (client *ExchangeRateAPIClient) Fetch(ctx context.Context, baseCode, apiKey string) (*models.RateSnapshot, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, client.buildURL(baseCode, apiKey), nil)
	if err != nil {
		return nil, models.NewTransportError(fmt.Errorf("failed to create request: %w", err))
	}

	client.logger.WithField("base", baseCode).Info("Fetching data from API")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, models.NewTransportError(client.redact(err, baseCode))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, models.NewTransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	// the provider reports errors in the body; a 200 with result=error is still an error
	if response.StatusCode == http.StatusOK && gjson.GetBytes(body, "result").String() != "error" {
		return client.parseSnapshot(body)
	}
	return nil, client.parseError(body, baseCode, response.StatusCode)
}

func (client *ExchangeRateAPIClient) buildURL(baseCode, apiKey string) string {
	return fmt.Sprintf("%s/%s/%s/latest/%s", client.baseURL, client.version, url.PathEscape(apiKey), url.PathEscape(baseCode))
}

// redact strips the request URL, which embeds the API key, from transport errors.
func (client *ExchangeRateAPIClient) redact(err error, baseCode string) error {
	var urlError *url.Error
	if errors.As(err, &urlError) {
		return fmt.Errorf("%s %s: %w", urlError.Op, client.buildURL(baseCode, "<key>"), urlError.Err)
	}
	return err
}

func (client *ExchangeRateAPIClient) parseSnapshot(body []byte) (*models.RateSnapshot, error) {
	var snapshot models.RateSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, models.NewDeserializeError("failed to parse API response", err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, models.NewDeserializeError("API response is not a valid rate table", err)
	}
	return &snapshot, nil
}

func (client *ExchangeRateAPIClient) parseError(body []byte, baseCode string, statusCode int) error {
	if !gjson.ValidBytes(body) {
		return models.NewDeserializeError(fmt.Sprintf("failed to parse API error response (status %d)", statusCode), nil)
	}
	errorType := gjson.GetBytes(body, "error-type")
	if !errorType.Exists() {
		return models.NewDeserializeError(fmt.Sprintf("API error response without error-type (status %d)", statusCode), nil)
	}

	apiError := models.NewAPIError(errorType.String(), baseCode)
	client.logger.WithFields(map[string]interface{}{
		"base":        baseCode,
		"status":      statusCode,
		"error_type":  errorType.String(),
		"error_class": apiError.Type.String(),
	}).Warn("API rejected request")
	return apiError
}

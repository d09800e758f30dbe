package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/dalfonso89/currency-converter/internal/config"
	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/models"
)

// TestAPIKey is the key every mock configuration and mock server agree on.
const TestAPIKey = "test-api-key"

// MockLogger creates a logger for tests that drops its output.
func MockLogger() *logger.Logger {
	return logger.Discard()
}

// MockConfig creates a configuration for testing. The provider URL points
// nowhere until a test replaces APIBaseURL.
func MockConfig() *config.Config {
	return &config.Config{
		Port:      "8081",
		LogLevel:  "debug",
		LogFormat: "json",

		APIKey:      TestAPIKey,
		APIBaseURL:  "http://127.0.0.1:0",
		APIVersion:  "v6",
		HTTPTimeout: 5 * time.Second,

		CacheDir:  ".currency-converter",
		CacheFile: "cache.db",

		RateLimitEnabled:  true,
		RateLimitRequests: 100,
		RateLimitWindow:   60 * time.Second,
		RateLimitBurst:    10,
	}
}

// MockSnapshot creates a snapshot for base that expires after ttl.
func MockSnapshot(base string, ttl time.Duration) *models.RateSnapshot {
	now := time.Now()
	rates := map[string]float64{
		"USD": 1.0,
		"EUR": 0.92,
		"GBP": 0.79,
		"JPY": 149.5,
	}
	rates[base] = 1.0
	return &models.RateSnapshot{
		Result:             "success",
		Documentation:      "https://www.exchangerate-api.com/docs",
		TermsOfUse:         "https://www.exchangerate-api.com/terms",
		TimeLastUpdateUnix: now.Unix(),
		TimeLastUpdateUTC:  now.UTC().Format(time.RFC1123Z),
		TimeNextUpdateUnix: now.Add(ttl).Unix(),
		TimeNextUpdateUTC:  now.Add(ttl).UTC().Format(time.RFC1123Z),
		BaseCode:           base,
		ConversionRates:    rates,
	}
}

// FakeRateSource is a RateSource that counts calls and returns canned results.
type FakeRateSource struct {
	mutex     sync.Mutex
	calls     map[string]int
	snapshots map[string]*models.RateSnapshot
	err       error
	lastKey   string
}

func NewFakeRateSource() *FakeRateSource {
	return &FakeRateSource{
		calls:     make(map[string]int),
		snapshots: make(map[string]*models.RateSnapshot),
	}
}

// WithSnapshot makes Fetch return snapshot for its base code.
func (source *FakeRateSource) WithSnapshot(snapshot *models.RateSnapshot) *FakeRateSource {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	source.snapshots[snapshot.BaseCode] = snapshot
	return source
}

// WithError makes every Fetch fail with err.
func (source *FakeRateSource) WithError(err error) *FakeRateSource {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	source.err = err
	return source
}

func (source *FakeRateSource) Fetch(ctx context.Context, baseCode, apiKey string) (*models.RateSnapshot, error) {
	source.mutex.Lock()
	defer source.mutex.Unlock()

	source.calls[baseCode]++
	source.lastKey = apiKey
	if source.err != nil {
		return nil, source.err
	}
	if snapshot, ok := source.snapshots[baseCode]; ok {
		return snapshot, nil
	}
	return nil, models.NewAPIError("unsupported-code", baseCode)
}

// Calls returns how many times Fetch ran for code.
func (source *FakeRateSource) Calls(code string) int {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return source.calls[code]
}

// LastAPIKey returns the key passed to the latest Fetch.
func (source *FakeRateSource) LastAPIKey() string {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return source.lastKey
}

// FailingStore is a CacheStore whose operations fail on demand and that
// otherwise keeps rows in memory.
type FailingStore struct {
	mutex      sync.Mutex
	PurgeErr   error
	LookupErr  error
	InsertErr  error
	rows       map[string]*models.RateSnapshot
	insertions int
}

func NewFailingStore() *FailingStore {
	return &FailingStore{rows: make(map[string]*models.RateSnapshot)}
}

func (store *FailingStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.PurgeErr != nil {
		return 0, store.PurgeErr
	}
	var deleted int64
	for code, snapshot := range store.rows {
		if snapshot.TimeNextUpdateUnix < now.Unix() {
			delete(store.rows, code)
			deleted++
		}
	}
	return deleted, nil
}

func (store *FailingStore) Lookup(ctx context.Context, code string) (*models.RateSnapshot, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.LookupErr != nil {
		return nil, false, store.LookupErr
	}
	snapshot, ok := store.rows[code]
	return snapshot, ok, nil
}

func (store *FailingStore) Insert(ctx context.Context, snapshot *models.RateSnapshot) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.insertions++
	if store.InsertErr != nil {
		return store.InsertErr
	}
	store.rows[snapshot.BaseCode] = snapshot
	return nil
}

// Insertions counts Insert calls, failed ones included.
func (store *FailingStore) Insertions() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.insertions
}

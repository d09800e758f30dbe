package service

import (
	"context"
	"time"

	"github.com/dalfonso89/currency-converter/internal/models"
)

// RateSource fetches a fresh snapshot for one base currency.
type RateSource interface {
	Fetch(ctx context.Context, baseCode, apiKey string) (*models.RateSnapshot, error)
}

// CacheStore is the persistent snapshot cache used by RatesService.
type CacheStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	Lookup(ctx context.Context, code string) (*models.RateSnapshot, bool, error)
	Insert(ctx context.Context, snapshot *models.RateSnapshot) error
}

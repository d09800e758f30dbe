package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/metrics"
	"github.com/dalfonso89/currency-converter/internal/models"
)

// RatesService resolves rate snapshots, preferring the persistent cache and
// falling back to the remote source. Cache failures are logged and bypassed;
// only remote failures reach the caller.
type RatesService struct {
	logger  *logger.Logger
	store   CacheStore
	source  RateSource
	apiKey  string
	metrics *metrics.Metrics
	now     func() time.Time

	singleFlightGroup singleflight.Group
}

// NewRatesService wires a resolver. store may be nil when the cache could not
// be opened; every resolution then goes to the remote source.
func NewRatesService(store CacheStore, source RateSource, apiKey string, logger *logger.Logger, metrics *metrics.Metrics) *RatesService {
	return &RatesService{
		logger:  logger,
		store:   store,
		source:  source,
		apiKey:  apiKey,
		metrics: metrics,
		now:     time.Now,
	}
}

// GetRates returns a snapshot for baseCode. Concurrent calls for the same code
// share a single resolution, which runs detached from the cancellation of
// whichever caller started it. A caller whose context ends stops waiting and
// gets a TransportError wrapping the context error.
func (ratesService *RatesService) GetRates(requestContext context.Context, baseCode string) (*models.RateSnapshot, error) {
	sharedContext := context.WithoutCancel(requestContext)
	resultChannel := ratesService.singleFlightGroup.DoChan("rates:"+baseCode, func() (interface{}, error) {
		return ratesService.resolve(sharedContext, baseCode)
	})

	select {
	case <-requestContext.Done():
		return nil, models.NewTransportError(requestContext.Err())
	case result := <-resultChannel:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*models.RateSnapshot), nil
	}
}

// Convert resolves the rates for from and converts amount into to.
func (ratesService *RatesService) Convert(requestContext context.Context, from, to string, amount float64) (models.ConvertResponse, error) {
	snapshot, err := ratesService.GetRates(requestContext, from)
	if err != nil {
		return models.ConvertResponse{}, err
	}

	converted, err := Convert(amount, to, snapshot)
	if err != nil {
		return models.ConvertResponse{}, err
	}
	ratesService.metrics.Conversion()

	return models.ConvertResponse{
		From:      from,
		To:        to,
		Amount:    amount,
		Rate:      snapshot.ConversionRates[to],
		Converted: converted,
	}, nil
}

func (ratesService *RatesService) resolve(requestContext context.Context, baseCode string) (*models.RateSnapshot, error) {
	if cached, found := ratesService.fromCache(requestContext, baseCode); found {
		return cached, nil
	}

	snapshot, err := ratesService.source.Fetch(requestContext, baseCode, ratesService.apiKey)
	if err != nil {
		ratesService.metrics.RemoteFetch("error")
		return nil, err
	}
	ratesService.metrics.RemoteFetch("success")

	// best effort: the caller gets the fresh snapshot whatever happens here
	ratesService.writeBack(requestContext, snapshot)
	return snapshot, nil
}

// fromCache purges expired rows and then looks baseCode up. Any failure is
// reported as a miss.
func (ratesService *RatesService) fromCache(requestContext context.Context, baseCode string) (*models.RateSnapshot, bool) {
	if ratesService.store == nil {
		return nil, false
	}
	log := ratesService.logger.WithField("base", baseCode)

	purged, err := ratesService.store.PurgeExpired(requestContext, ratesService.now())
	if err != nil {
		ratesService.metrics.CacheFailure("purge")
		log.WithError(err).Warn("Cannot clear out old data from cache, continuing with data from API")
		return nil, false
	}
	ratesService.metrics.Purged(purged)
	if purged > 0 {
		log.Debugf("Purged %d expired cache rows", purged)
	}

	snapshot, found, err := ratesService.store.Lookup(requestContext, baseCode)
	switch {
	case err != nil:
		ratesService.metrics.CacheFailure("lookup")
		log.WithError(err).Warn("Error getting data from cache, continuing with data from API")
		return nil, false
	case !found:
		ratesService.metrics.CacheMiss()
		return nil, false
	}

	ratesService.metrics.CacheHit()
	log.Info("Using data from cache")
	return snapshot, true
}

func (ratesService *RatesService) writeBack(requestContext context.Context, snapshot *models.RateSnapshot) {
	if ratesService.store == nil {
		return
	}
	if err := ratesService.store.Insert(requestContext, snapshot); err != nil {
		ratesService.metrics.CacheFailure("insert")
		ratesService.logger.WithField("base", snapshot.BaseCode).WithError(err).Warn("Cannot cache received response")
	}
}

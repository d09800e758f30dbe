package models

import (
	"fmt"
	"math"
	"time"
)

// RateSnapshot is one rate table for a base currency as returned by the
// exchangerate-api v6 "latest" endpoint. It is also the cached payload.
type RateSnapshot struct {
	Result             string             `json:"result"`
	Documentation      string             `json:"documentation"`
	TermsOfUse         string             `json:"terms_of_use"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	TimeLastUpdateUTC  string             `json:"time_last_update_utc"`
	TimeNextUpdateUnix int64              `json:"time_next_update_unix"`
	TimeNextUpdateUTC  string             `json:"time_next_update_utc"`
	BaseCode           string             `json:"base_code"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// ExpiresAt returns the moment after which the snapshot must be refetched.
func (snapshot *RateSnapshot) ExpiresAt() time.Time {
	return time.Unix(snapshot.TimeNextUpdateUnix, 0)
}

// Validate checks the snapshot shape: a three letter uppercase base code and
// at least one positive finite rate.
func (snapshot *RateSnapshot) Validate() error {
	if !IsCurrencyCode(snapshot.BaseCode) {
		return fmt.Errorf("invalid base code %q", snapshot.BaseCode)
	}
	if len(snapshot.ConversionRates) == 0 {
		return fmt.Errorf("snapshot for %s has no conversion rates", snapshot.BaseCode)
	}
	for code, rate := range snapshot.ConversionRates {
		if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
			return fmt.Errorf("invalid rate %v for %s", rate, code)
		}
	}
	return nil
}

// APIErrorPayload is the body the provider sends with a non-success response.
type APIErrorPayload struct {
	Result        string `json:"result"`
	Documentation string `json:"documentation"`
	TermsOfUse    string `json:"terms-of-use"`
	ErrorType     string `json:"error-type"`
}

// ConvertQuery is a single conversion request.
type ConvertQuery struct {
	From   string  `form:"from" json:"from" binding:"required,len=3,uppercase"`
	To     string  `form:"to" json:"to" binding:"required,len=3,uppercase"`
	Amount float64 `form:"amount" json:"amount" binding:"required,gt=0"`
}

// ConvertResponse is the outcome of a conversion.
type ConvertResponse struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Rate      float64 `json:"rate"`
	Converted float64 `json:"converted"`
}

// HealthCheck is the body of the health endpoint.
type HealthCheck struct {
	Status    string    `json:"status"`
	Cache     string    `json:"cache"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// ErrorResponse is the body written for any failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// IsCurrencyCode reports whether code is exactly three uppercase ASCII letters.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

package settings

import (
	"context"
	"time"
)

// Engine holds the tunables the checkout and notification paths read.
// All of them live in the settings table so the UI and the engine always
// agree on one value; nothing else in the codebase is allowed to hardcode
// a low-stock threshold or tax rate.
type Engine struct {
	TaxEnabled            bool
	TaxRatePercent        float64
	LowStockThreshold     int
	DailySalesTargetCents int64
	SalesDayStartHour     int // 0-23, UTC
}

// Defaults returns the engine settings used when a key is absent.
func Defaults() Engine {
	return Engine{
		TaxEnabled:            false,
		TaxRatePercent:        0,
		LowStockThreshold:     2,
		DailySalesTargetCents: 0, // 0 disables the sales-target trigger
		SalesDayStartHour:     0,
	}
}

// SalesDayStart returns the boundary of the sales day containing now.
func (e Engine) SalesDayStart(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), e.SalesDayStartHour, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// Provider exposes engine settings to the modules that consume them.
type Provider interface {
	Engine(ctx context.Context) (Engine, error)
}

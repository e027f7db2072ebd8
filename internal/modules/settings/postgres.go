package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/lib/pq"
)

type postgresProvider struct{ db *sql.DB }

// NewPostgresProvider reads engine settings from the key/value settings table.
func NewPostgresProvider(db *sql.DB) Provider { return &postgresProvider{db: db} }

func (p *postgresProvider) Engine(ctx context.Context) (Engine, error) {
	e := Defaults()

	rows, err := p.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key = ANY($1)`,
		pq.Array([]string{
			"tax_enabled", "tax_rate_percent", "low_stock_threshold",
			"daily_sales_target_cents", "sales_day_start_hour",
		}))
	if err != nil {
		return e, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return e, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case "tax_enabled":
			e.TaxEnabled = value == "true" || value == "1"
		case "tax_rate_percent":
			if v, err := strconv.ParseFloat(value, 64); err == nil && v >= 0 {
				e.TaxRatePercent = v
			}
		case "low_stock_threshold":
			if v, err := strconv.Atoi(value); err == nil && v >= 0 {
				e.LowStockThreshold = v
			}
		case "daily_sales_target_cents":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				e.DailySalesTargetCents = v
			}
		case "sales_day_start_hour":
			if v, err := strconv.Atoi(value); err == nil && v >= 0 && v <= 23 {
				e.SalesDayStartHour = v
			}
		}
	}
	return e, rows.Err()
}

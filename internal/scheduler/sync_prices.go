package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/modules/historical"
)

// SyncPricesJob refreshes the local price store for the configured
// universe after each trading day.
type SyncPricesJob struct {
	service *historical.Service
	symbols []string
	window  time.Duration
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncPricesJob creates a price sync job covering the given lookback
// window.
func NewSyncPricesJob(service *historical.Service, symbols []string, window time.Duration, log zerolog.Logger) *SyncPricesJob {
	return &SyncPricesJob{
		service: service,
		symbols: symbols,
		window:  window,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "sync_prices").Logger(),
	}
}

// Name returns the job name
func (j *SyncPricesJob) Name() string { return "sync_prices" }

// Run syncs prices for all configured symbols
func (j *SyncPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	end := time.Now().UTC()
	start := end.Add(-j.window)

	result, err := j.service.Sync(ctx, j.symbols,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return err
	}

	j.log.Info().
		Int("inserted", result.Inserted).
		Int("failed", len(result.Failed)).
		Msg("Scheduled price sync finished")
	return nil
}

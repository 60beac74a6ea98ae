package monitoring

import (
	"context"
	"time"

	"github.com/isdelr/turu-api/internal/metrics"
	"github.com/isdelr/turu-api/internal/models"
	"github.com/rs/zerolog/log"
)

// AccountLister is the slice of the account service the stat updater needs.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// StatUpdater periodically publishes account totals as gauges.
type StatUpdater struct {
	accounts AccountLister
	timeout  time.Duration
}

// NewStatUpdater creates a new StatUpdater.
func NewStatUpdater(accounts AccountLister) *StatUpdater {
	return &StatUpdater{accounts: accounts, timeout: 30 * time.Second}
}

// Run implements cron.Job.
func (su *StatUpdater) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), su.timeout)
	defer cancel()

	active, inactive, err := su.Update(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to refresh account stats")
		return
	}
	log.Debug().Int("active", active).Int("inactive", inactive).Msg("Refreshed account stats")
}

// Update counts stored accounts by state and publishes the totals.
func (su *StatUpdater) Update(ctx context.Context) (active, inactive int, err error) {
	all, err := su.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, acc := range all {
		if acc.Active {
			active++
		} else {
			inactive++
		}
	}
	metrics.SetAccountCounts(active, inactive)
	return active, inactive, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
database:
  dsn: "host=localhost user=library dbname=library"
sweep:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)

	// Unset policy knobs fall back to the standard circulation policy.
	assert.Equal(t, 15, cfg.Policy.LoanPeriodDays)
	assert.Equal(t, 3, cfg.Policy.MaxRenewals)
	assert.Equal(t, 15, cfg.Policy.RenewalPeriodDays)
	assert.Equal(t, 3, cfg.Policy.PickupWindowDays)
	assert.Equal(t, int64(50), cfg.Policy.OverdueDailyFineCents)
	assert.Equal(t, int64(1500), cfg.Policy.DamageFineCents)
	assert.Equal(t, int64(4500), cfg.Policy.LostReplacementFineCents)
	assert.Equal(t, 30, cfg.Policy.PenaltyDueDays)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 3600, cfg.Push.TTL)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
policy:
  loan_period_days: 21
  max_renewals: 1
  overdue_daily_fine_cents: 100
sweep:
  interval_seconds: 60
worker_pool:
  size: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Policy.LoanPeriodDays)
	assert.Equal(t, 1, cfg.Policy.MaxRenewals)
	assert.Equal(t, int64(100), cfg.Policy.OverdueDailyFineCents)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 8, cfg.WorkerPool.Size)
	// Untouched knobs still get defaults.
	assert.Equal(t, 3, cfg.Policy.PickupWindowDays)
}

func TestPolicyDurations(t *testing.T) {
	p := PolicyConfig{LoanPeriodDays: 15, RenewalPeriodDays: 10, PickupWindowDays: 3, PenaltyDueDays: 30}
	assert.Equal(t, 15*24*time.Hour, p.LoanPeriod())
	assert.Equal(t, 10*24*time.Hour, p.RenewalPeriod())
	assert.Equal(t, 3*24*time.Hour, p.PickupWindow())
	assert.Equal(t, 30*24*time.Hour, p.PenaltyDue())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

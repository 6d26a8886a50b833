// Package jobs contains background workers that run on a schedule. The pull
// scheduler periodically fetches alerts from installed providers that have
// pulling enabled. Pulls are idempotent at the ingest layer: repeated events
// for the same incident share a fingerprint and group together.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alertdesk/alertdesk/internal/db/models"
	"github.com/alertdesk/alertdesk/internal/provider"
	"github.com/alertdesk/alertdesk/internal/safego"
	"github.com/alertdesk/alertdesk/internal/telemetry"
)

// ProviderSource lists the installed providers eligible for pulling and
// records pull completion times.
type ProviderSource interface {
	ListPullingEnabled(ctx context.Context) ([]*models.ProviderRecord, error)
	UpdateLastPullTime(ctx context.Context, tenantID, instanceID string, at time.Time) error
}

// InstanceOpener produces a live provider instance for an installed record.
type InstanceOpener interface {
	OpenInstance(ctx context.Context, tenantID, instanceID string) (provider.Provider, error)
}

// AlertIngestor stores pulled alert events.
type AlertIngestor interface {
	IngestAlertEvent(ctx context.Context, tenantID, providerType string, providerID *string, event map[string]any) (*models.Alert, error)
}

// PullScheduler periodically pulls alerts from every installed provider with
// pulling enabled. One slow or panicking provider never blocks or kills the
// others: each pull runs in its own recovered goroutine, and an instance
// still pulling when the next tick fires is skipped.
type PullScheduler struct {
	records  ProviderSource
	opener   InstanceOpener
	ingestor AlertIngestor

	activePulls map[string]bool
	activeMutex sync.Mutex
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewPullScheduler creates a pull scheduler.
func NewPullScheduler(records ProviderSource, opener InstanceOpener, ingestor AlertIngestor) *PullScheduler {
	return &PullScheduler{
		records:     records,
		opener:      opener,
		ingestor:    ingestor,
		activePulls: make(map[string]bool),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic pull loop. The first round runs immediately.
func (j *PullScheduler) Start(ctx context.Context, interval time.Duration) {
	slog.InfoContext(ctx, "starting alert pull scheduler", "interval", interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		j.runPulls(ctx)

		for {
			select {
			case <-ticker.C:
				j.runPulls(ctx)
			case <-j.stopCh:
				slog.InfoContext(ctx, "alert pull scheduler stopped")
				return
			case <-ctx.Done():
				slog.InfoContext(ctx, "alert pull scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for in-flight pulls to finish.
func (j *PullScheduler) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

func pullKey(tenantID, instanceID string) string { return tenantID + "|" + instanceID }

// runPulls fans one pull goroutine out per eligible provider, skipping any
// instance still busy from the previous round.
func (j *PullScheduler) runPulls(ctx context.Context) {
	records, err := j.records.ListPullingEnabled(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list pulling-enabled providers", "error", err)
		return
	}
	if len(records) == 0 {
		return
	}

	for _, record := range records {
		key := pullKey(record.TenantID, record.InstanceID)

		j.activeMutex.Lock()
		if j.activePulls[key] {
			slog.WarnContext(ctx, "previous pull still running, skipping",
				"tenant_id", record.TenantID, "provider_id", record.InstanceID)
			j.activeMutex.Unlock()
			continue
		}
		j.activePulls[key] = true
		j.activeMutex.Unlock()

		record := record
		j.wg.Add(1)
		safego.Go("alert-pull", func() {
			defer j.wg.Done()
			defer func() {
				j.activeMutex.Lock()
				delete(j.activePulls, key)
				j.activeMutex.Unlock()
			}()
			j.pullOne(ctx, record)
		})
	}
}

// pullOne fetches alerts from a single provider instance and ingests them.
// Providers that do not implement pulling are skipped: a capability probe
// outcome, not an error.
func (j *PullScheduler) pullOne(ctx context.Context, record *models.ProviderRecord) {
	start := time.Now()

	p, err := j.opener.OpenInstance(ctx, record.TenantID, record.InstanceID)
	if err != nil {
		telemetry.AlertPullErrorsTotal.WithLabelValues(record.Type).Inc()
		slog.ErrorContext(ctx, "failed to open provider for pull",
			"tenant_id", record.TenantID, "provider_id", record.InstanceID,
			"provider_type", record.Type, "error", err)
		return
	}
	defer p.Close()

	puller, ok := p.(provider.AlertPuller)
	if !ok {
		return
	}

	events, err := puller.PullAlerts(ctx)
	telemetry.AlertPullDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.AlertPullErrorsTotal.WithLabelValues(record.Type).Inc()
		slog.ErrorContext(ctx, "alert pull failed",
			"tenant_id", record.TenantID, "provider_id", record.InstanceID,
			"provider_type", record.Type, "error", err)
		return
	}

	ingested := 0
	for _, event := range events {
		if _, err := j.ingestor.IngestAlertEvent(ctx, record.TenantID, record.Type, &record.InstanceID, event); err != nil {
			slog.ErrorContext(ctx, "failed to ingest pulled alert",
				"tenant_id", record.TenantID, "provider_id", record.InstanceID, "error", err)
			continue
		}
		ingested++
	}
	telemetry.AlertsPulledTotal.WithLabelValues(record.Type).Add(float64(ingested))

	if err := j.records.UpdateLastPullTime(ctx, record.TenantID, record.InstanceID, time.Now()); err != nil {
		slog.ErrorContext(ctx, "failed to record pull time",
			"tenant_id", record.TenantID, "provider_id", record.InstanceID, "error", err)
	}

	slog.DebugContext(ctx, "alert pull completed",
		"tenant_id", record.TenantID, "provider_id", record.InstanceID,
		"provider_type", record.Type, "alerts", ingested,
		"duration", time.Since(start))
}

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultGracePeriod    = 24 * time.Hour
	DefaultReconcileBatch = 100
	reconcileConcurrency  = 4
)

// TokenPurger drops expired tokens from a token store that does not expire
// them on its own.
type TokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type ReconcileOptions struct {
	GracePeriod time.Duration
	BatchSize   int
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Scanned      int   `json:"scanned"`
	Purged       int64 `json:"purged"`
	Failed       int64 `json:"failed"`
	TokensPurged int64 `json:"tokens_purged"`
}

// Reconciler removes stored objects whose record has been unassociated for
// longer than the grace period, and records that were soft-deleted.
type Reconciler struct {
	db      *gorm.DB
	records *repository.FileRecordRepository
	files   *storage.Factory
	tokens  TokenPurger
	opts    ReconcileOptions
	now     func() time.Time
}

// NewReconciler creates a reconciler. tokens may be nil.
func NewReconciler(db *gorm.DB, records *repository.FileRecordRepository, files *storage.Factory, tokens TokenPurger, opts ReconcileOptions) *Reconciler {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultReconcileBatch
	}
	return &Reconciler{db: db, records: records, files: files, tokens: tokens, opts: opts, now: time.Now}
}

// Run performs one pass. Per-object failures are counted, not returned.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	now := r.now().UTC()
	stale, err := r.records.FindStale(ctx, now.Add(-r.opts.GracePeriod), r.opts.BatchSize)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{Scanned: len(stale)}

	var purged, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, rec := range stale {
		rec := rec
		g.Go(func() error {
			ok, err := r.purge(gctx, rec)
			switch {
			case err != nil:
				failed.Add(1)
				log.WithError(err).WithFields(log.Fields{"file_id": rec.ID, "object_name": rec.ObjectName}).
					Warn("Could not reconcile stored object")
			case ok:
				purged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Purged = purged.Load()
	report.Failed = failed.Load()

	if r.tokens != nil {
		n, err := r.tokens.DeleteExpired(ctx, now)
		if err != nil {
			log.WithError(err).Warn("Could not purge expired tokens")
		}
		report.TokensPurged = n
	}

	log.WithFields(log.Fields{
		"scanned":       report.Scanned,
		"purged":        report.Purged,
		"failed":        report.Failed,
		"tokens_purged": report.TokensPurged,
	}).Info("File reconciliation finished")
	return report, nil
}

// purge deletes the row and its object together. The row is re-checked inside
// the transaction so a record associated again in the meantime survives; a
// failed object delete rolls the row back for the next pass.
func (r *Reconciler) purge(ctx context.Context, rec models.FileRecord) (bool, error) {
	purged := false
	err := database.Transaction(ctx, r.db, func(ctx context.Context) error {
		n, err := r.records.DeleteIfStale(ctx, rec.ID)
		if err != nil || n == 0 {
			return err
		}
		client, _, err := r.files.ClientForProfile(rec.ProfileName)
		if err != nil {
			return err
		}
		if err := client.DeleteObject(ctx, rec.ObjectName); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return err
		}
		purged = true
		return nil
	})
	return purged, err
}

// Start runs a pass every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		log.Info("File reconciliation job disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.WithField("interval", interval.String()).Info("File reconciliation job started")
	for {
		select {
		case <-ctx.Done():
			log.Info("File reconciliation job stopped")
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("File reconciliation failed")
			}
		}
	}
}

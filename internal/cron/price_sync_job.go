package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pricesync-backend/internal/pricesync"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

type syncRunner interface {
	Run(ctx context.Context, req pricesync.Request) (pricesync.Result, error)
}

// PriceSyncJobParams configure the scheduled price sync.
type PriceSyncJobParams struct {
	Logger *logger.Logger
	Syncer syncRunner
	Limit  int
}

// NewPriceSyncJob builds the job that resyncs every product with a source URL.
func NewPriceSyncJob(params PriceSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("price sync service required")
	}
	return &priceSyncJob{logg: params.Logger, syncer: params.Syncer, limit: params.Limit}, nil
}

type priceSyncJob struct {
	logg   *logger.Logger
	syncer syncRunner
	limit  int
}

func (j *priceSyncJob) Name() string { return "price-sync" }

// Run fails only when the whole batch could not start. Per-product failures
// are partial success and only logged.
func (j *priceSyncJob) Run(ctx context.Context) error {
	res, err := j.syncer.Run(ctx, pricesync.Request{Limit: j.limit})
	if err != nil {
		return err
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"updated": res.Updated,
		"failed":  res.Failed,
		"skipped": res.Skipped,
	})
	if !res.OK {
		j.logg.Warn(ctx, "price sync finished with product failures")
		return nil
	}
	j.logg.Info(ctx, "price sync finished")
	return nil
}

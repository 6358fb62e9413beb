package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pricesync-backend/internal/sale"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
)

type expirySweeper interface {
	Sweep(ctx context.Context, now time.Time) (sale.SweepResult, error)
}

// SaleExpiryJobParams configure the daily sale expiry sweep.
type SaleExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper expirySweeper
	Now     func() time.Time
}

func NewSaleExpiryJob(params SaleExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("expiry sweeper required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &saleExpiryJob{logg: params.Logger, sweeper: params.Sweeper, now: now}, nil
}

type saleExpiryJob struct {
	logg    *logger.Logger
	sweeper expirySweeper
	now     func() time.Time
}

func (j *saleExpiryJob) Name() string { return "sale-expiry" }

func (j *saleExpiryJob) Run(ctx context.Context) error {
	res, err := j.sweeper.Sweep(ctx, j.now())
	if err != nil {
		return err
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"checked": res.Checked,
		"expired": res.Expired,
		"updated": res.Updated,
		"errors":  len(res.Errors),
	})
	if !res.OK {
		j.logg.Warn(ctx, "sale expiry finished with product errors")
		return nil
	}
	j.logg.Info(ctx, "sale expiry finished")
	return nil
}

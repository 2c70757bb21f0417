package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/askdoc/internal/service"
)

// OrphanSweepJob removes embeddings that lost their document row, typically
// leftovers of a crashed ingestion or a manual document deletion.
type OrphanSweepJob struct {
	repair *service.RepairService
}

func NewOrphanSweepJob(repair *service.RepairService) *OrphanSweepJob {
	return &OrphanSweepJob{repair: repair}
}

func (j *OrphanSweepJob) Name() string {
	return "orphan_sweep"
}

func (j *OrphanSweepJob) Run(ctx context.Context) error {
	if j.repair == nil {
		return nil
	}
	report := j.repair.SweepOrphans(ctx)
	logutil.GetLogger(ctx).Info("orphan sweep report",
		zap.Int("removed", report.Removed),
		zap.Int("failed", report.Failed),
	)
	return nil
}

package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"mip-lab/internal/db"
)

var metricsCSVHeader = []string{"non_zero_count", "phase", "solcnt", "elapsed_ms", "instance_name"}

// ExportMetricsCSV 把一个作业的回调指标写成 CSV
func ExportMetricsCSV(ctx context.Context, store *db.Store, jobID uint, w io.Writer) (int, error) {
	jr, err := store.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	samples, err := store.ListMetrics(ctx, jobID)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(metricsCSVHeader); err != nil {
		return 0, fmt.Errorf("写入 CSV 失败: %w", err)
	}
	for _, m := range samples {
		record := []string{
			strconv.Itoa(m.NonZeroCount),
			strconv.Itoa(m.Phase),
			strconv.Itoa(m.SolCnt),
			strconv.FormatInt(m.ElapsedMS, 10),
			jr.Job.InstanceID,
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("写入 CSV 失败: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("写入 CSV 失败: %w", err)
	}
	return len(samples), nil
}

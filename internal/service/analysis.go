package service

import (
	"context"
	"math"

	"mip-lab/internal/config"
	"mip-lab/internal/db"

	"github.com/rs/zerolog/log"
)

// SelectInstances 取基线组每个实例最近一次作业，MIP gap 落在 (MinGap, MaxGap) 内且有解的实例标记为选中。
// 返回本次选中的实例
func SelectInstances(ctx context.Context, store *db.Store, sel config.SelectionConfig) ([]string, error) {
	rows, err := store.LatestResultsForGroup(ctx, sel.BaseGroup)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range rows {
		gap := r.Result.MIPGap
		if gap > sel.MinGap && gap < sel.MaxGap && r.Result.Solution != "" {
			ids = append(ids, r.Job.InstanceID)
		}
	}
	if len(ids) == 0 {
		log.Ctx(ctx).Info().Str("base_group", sel.BaseGroup).Msg("没有符合条件的实例")
		return ids, nil
	}
	n, err := store.SetSelected(ctx, ids)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Int64("selected", n).Msg("实例筛选完成")
	return ids, nil
}

// UpdateBestKnownObjVals 刷新每个实例的最好目标值
func UpdateBestKnownObjVals(ctx context.Context, store *db.Store) (int, error) {
	n, err := store.UpdateBestKnownObjVals(ctx)
	if err != nil {
		return 0, err
	}
	log.Ctx(ctx).Info().Int("instances", n).Msg("最好目标值已更新")
	return n, nil
}

// PrimalGap |obj - best| / |best|；best 接近 0 时为 +Inf
func PrimalGap(obj, best float64) float64 {
	if math.Abs(best) <= 1e-9 {
		return math.Inf(1)
	}
	return math.Abs(obj-best) / math.Abs(best)
}

// UpdatePrimalGaps 为所有有解的结果计算 primal gap。实例没有最好目标值或 gap 为无穷时存 NULL
func UpdatePrimalGaps(ctx context.Context, store *db.Store) (int, error) {
	rows, err := store.ListPrimalGapRows(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		var gap *float64
		if r.BestKnownObjVal != nil {
			if g := PrimalGap(r.ObjVal, *r.BestKnownObjVal); !math.IsInf(g, 0) {
				gap = &g
			}
		}
		if err := store.SetPrimalGap(ctx, r.ResultID, gap); err != nil {
			return 0, err
		}
	}
	log.Ctx(ctx).Info().Int("results", len(rows)).Msg("primal gap 已更新")
	return len(rows), nil
}

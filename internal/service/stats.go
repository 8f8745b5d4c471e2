package service

import (
	"context"
	"math"
	"sort"

	"mip-lab/internal/db"
	"mip-lab/internal/mip"
)

type GroupStats struct {
	N            int     `json:"n"`
	Optimal      int     `json:"optimal"`
	WithSolution int     `json:"with_solution"`
	OptimalRate  float64 `json:"optimal_rate"`
	CI95Low      float64 `json:"ci95_low"`
	CI95High     float64 `json:"ci95_high"`
	MeanRuntime  float64 `json:"mean_runtime"`
	// MeanMIPGap 只统计有解的作业
	MeanMIPGap float64 `json:"mean_mip_gap"`
	// MeanPrimalGap 只统计已计算出有限 primal gap 的作业
	MeanPrimalGap float64 `json:"mean_primal_gap"`
	PrimalGapN    int     `json:"primal_gap_n"`
}

// ZTest 两比例 z 检验（双侧）
type ZTest struct {
	Baseline string  `json:"baseline"`
	PValue   float64 `json:"p_value"`
	Z        float64 `json:"z"`
}

// CalcGroupStats 一组作业的汇总
func CalcGroupStats(rows []db.JobResult) GroupStats {
	gs := GroupStats{N: len(rows)}
	if gs.N == 0 {
		return gs
	}
	var runtime, gap, primal float64
	for _, r := range rows {
		res := r.Result
		runtime += res.Runtime
		if mip.Status(res.Status) == mip.StatusOptimal {
			gs.Optimal++
		}
		if res.SolCount > 0 {
			gs.WithSolution++
			gap += res.MIPGap
		}
		if res.PrimalGap != nil && !math.IsInf(*res.PrimalGap, 0) {
			gs.PrimalGapN++
			primal += *res.PrimalGap
		}
	}
	gs.OptimalRate = float64(gs.Optimal) / float64(gs.N)
	gs.CI95Low, gs.CI95High = wilsonCI(gs.Optimal, gs.N, 1.96)
	gs.MeanRuntime = runtime / float64(gs.N)
	if gs.WithSolution > 0 {
		gs.MeanMIPGap = gap / float64(gs.WithSolution)
	}
	if gs.PrimalGapN > 0 {
		gs.MeanPrimalGap = primal / float64(gs.PrimalGapN)
	}
	return gs
}

// GroupByName 按实验组拆分，组名升序
func GroupByName(rows []db.JobResult) (map[string][]db.JobResult, []string) {
	out := map[string][]db.JobResult{}
	for _, r := range rows {
		out[r.Job.GroupName] = append(out[r.Job.GroupName], r)
	}
	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names
}

// CompareGroups 各组最优率与基线组做显著性检验；基线组缺失时不做检验
func CompareGroups(stats map[string]GroupStats, baseline string) map[string]ZTest {
	tests := map[string]ZTest{}
	base, ok := stats[baseline]
	if !ok {
		return tests
	}
	for name, s := range stats {
		if name == baseline {
			continue
		}
		p, z := twoPropZTest(base.Optimal, base.N, s.Optimal, s.N)
		tests[name+"_vs_"+baseline] = ZTest{Baseline: baseline, PValue: p, Z: z}
	}
	return tests
}

// BatchStats 只统计本批次的作业；基线取数据库中每个实例最近一次 grb_only 作业
func BatchStats(ctx context.Context, store *db.Store, runID uint) (map[string]GroupStats, map[string]ZTest, error) {
	rows, err := store.ListJobs(ctx, db.JobFilter{BatchRunID: runID})
	if err != nil {
		return nil, nil, err
	}
	grouped, _ := GroupByName(rows)
	stats := map[string]GroupStats{}
	for name, g := range grouped {
		stats[name] = CalcGroupStats(g)
	}
	if _, ok := stats[GroupGRBOnly]; !ok {
		base, err := store.LatestResultsForGroup(ctx, GroupGRBOnly)
		if err != nil {
			return nil, nil, err
		}
		if len(base) > 0 {
			withBase := make(map[string]GroupStats, len(stats)+1)
			for k, v := range stats {
				withBase[k] = v
			}
			withBase[GroupGRBOnly] = CalcGroupStats(base)
			return stats, CompareGroups(withBase, GroupGRBOnly), nil
		}
	}
	return stats, CompareGroups(stats, GroupGRBOnly), nil
}

// AllGroupStats 数据库中全部作业按组统计
func AllGroupStats(ctx context.Context, store *db.Store) (map[string]GroupStats, map[string]ZTest, error) {
	rows, err := store.ListJobs(ctx, db.JobFilter{})
	if err != nil {
		return nil, nil, err
	}
	grouped, _ := GroupByName(rows)
	stats := map[string]GroupStats{}
	for name, g := range grouped {
		stats[name] = CalcGroupStats(g)
	}
	return stats, CompareGroups(stats, GroupGRBOnly), nil
}

// Wilson score interval for proportion
func wilsonCI(k int, n int, z float64) (float64, float64) {
	if n == 0 {
		return 0, 0
	}
	p := float64(k) / float64(n)
	zz := z * z
	den := 1 + zz/float64(n)
	center := (p + zz/(2*float64(n))) / den
	half := (z / den) * math.Sqrt((p*(1-p)+zz/(4*float64(n)))/float64(n))
	low := math.Max(0, center-half)
	high := math.Min(1, center+half)
	return low, high
}

// two-proportion z-test (two-sided)
func twoPropZTest(x1, n1, x2, n2 int) (pValue float64, z float64) {
	if n1 == 0 || n2 == 0 {
		return 1, 0
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	p := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(p * (1 - p) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 1, 0
	}
	z = (p2 - p1) / se
	pValue = 2 * (1 - normCDF(math.Abs(z)))
	return pValue, z
}

// standard normal CDF approximation via erf
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

package service

import "mip-lab/internal/model"

// MetricSummary 单个作业回调指标的概要
type MetricSummary struct {
	JobID   uint `json:"job_id"`
	Samples int  `json:"samples"`
	// FirstIncumbentMS 第一次出现可行解的时间（-1 表示整个求解过程都没有）
	FirstIncumbentMS int64 `json:"first_incumbent_ms"`
	FinalSolCnt      int   `json:"final_solcnt"`
	LastElapsedMS    int64 `json:"last_elapsed_ms"`

	MeanNonZero float64 `json:"mean_non_zero"`
	MinNonZero  int     `json:"min_non_zero"`
	MaxNonZero  int     `json:"max_non_zero"`

	// PhaseCounts 各阶段的节点数
	PhaseCounts map[int]int `json:"phase_counts"`
}

func SummarizeMetrics(jobID uint, samples []model.MetricSample) MetricSummary {
	s := MetricSummary{
		JobID:            jobID,
		Samples:          len(samples),
		FirstIncumbentMS: -1,
		PhaseCounts:      map[int]int{},
	}
	if len(samples) == 0 {
		return s
	}
	total := 0
	s.MinNonZero = samples[0].NonZeroCount
	for _, m := range samples {
		if s.FirstIncumbentMS < 0 && m.SolCnt > 0 {
			s.FirstIncumbentMS = m.ElapsedMS
		}
		total += m.NonZeroCount
		if m.NonZeroCount < s.MinNonZero {
			s.MinNonZero = m.NonZeroCount
		}
		if m.NonZeroCount > s.MaxNonZero {
			s.MaxNonZero = m.NonZeroCount
		}
		s.PhaseCounts[m.Phase]++
	}
	last := samples[len(samples)-1]
	s.FinalSolCnt = last.SolCnt
	s.LastElapsedMS = last.ElapsedMS
	s.MeanNonZero = float64(total) / float64(len(samples))
	return s
}

// NonZeroCurve 按时间降采样到最多 points 个点，便于画图；最后一个样本总会保留
func NonZeroCurve(samples []model.MetricSample, points int) []model.MetricSample {
	if points <= 0 || len(samples) <= points {
		return samples
	}
	if points == 1 {
		return samples[len(samples)-1:]
	}
	out := make([]model.MetricSample, 0, points)
	step := float64(len(samples)-1) / float64(points-1)
	for i := 0; i < points; i++ {
		out = append(out, samples[int(float64(i)*step+0.5)])
	}
	out[len(out)-1] = samples[len(samples)-1]
	return out
}

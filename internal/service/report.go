package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mip-lab/internal/model"
)

func RenderBatchMarkdown(run *model.BatchRun, result *BatchResult) string {
	var b strings.Builder
	b.WriteString("# 求解实验批次报告\n\n")
	b.WriteString(fmt.Sprintf("- run_id: %d\n", run.ID))
	b.WriteString(fmt.Sprintf("- uuid: %s\n", run.UUID))
	b.WriteString(fmt.Sprintf("- group: %s\n", run.Group))
	b.WriteString(fmt.Sprintf("- time_limit_s: %d\n", run.TimeLimitS))
	b.WriteString(fmt.Sprintf("- jobs: %d（成功 %d，失败 %d）\n", result.Planned, result.Succeeded, result.Failed))
	b.WriteString(fmt.Sprintf("- created_at: %s\n\n", run.CreatedAt.Format(time.RFC3339)))

	names := make([]string, 0, len(result.Stats))
	for name := range result.Stats {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("## 组内统计（仅本批次）\n\n")
	b.WriteString("| 组别 | N | Optimal | OptimalRate | CI95 | 平均耗时(s) | 平均 MIPGap | 平均 PrimalGap |\n")
	b.WriteString("| --- | ---: | ---: | ---: | --- | ---: | ---: | ---: |\n")
	for _, g := range names {
		s := result.Stats[g]
		primal := "-"
		if s.PrimalGapN > 0 {
			primal = fmt.Sprintf("%.4f", s.MeanPrimalGap)
		}
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %.3f | [%.3f, %.3f] | %.3f | %.4f | %s |\n",
			g, s.N, s.Optimal, s.OptimalRate, s.CI95Low, s.CI95High, s.MeanRuntime, s.MeanMIPGap, primal))
	}
	b.WriteString("\n")

	b.WriteString("## 显著性检验（最优率 vs 基线）\n\n")
	if len(result.Tests) == 0 {
		b.WriteString("- 无（缺少基线组或样本不足）\n\n")
	} else {
		keys := make([]string, 0, len(result.Tests))
		for k := range result.Tests {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t := result.Tests[k]
			b.WriteString(fmt.Sprintf("- %s: z=%.3f, p=%.4f\n", k, t.Z, t.PValue))
		}
		b.WriteString("\n")
	}

	if len(result.Errors) > 0 {
		b.WriteString("## 执行错误\n\n")
		max := len(result.Errors)
		if max > 20 {
			max = 20
		}
		for i := 0; i < max; i++ {
			b.WriteString(fmt.Sprintf("- %s\n", result.Errors[i]))
		}
		if len(result.Errors) > max {
			b.WriteString(fmt.Sprintf("- ...(剩余 %d 条省略)\n", len(result.Errors)-max))
		}
	}
	return b.String()
}

package service

import (
	"fmt"
	"time"

	"mip-lab/internal/mip"
	"mip-lab/internal/model"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// ProgressRecorder 在求解器每探索一个节点时记录一条指标。
// 由求解器线程同步调用；Samples/Errors 只能在 Optimize 返回之后读取
type ProgressRecorder struct {
	vars    []*mip.Var
	clock   clock.Clock
	started time.Time
	logger  zerolog.Logger

	samples []model.MetricSample
	lastMS  int64
	errors  int
}

func NewProgressRecorder(vars []*mip.Var, clk clock.Clock, logger zerolog.Logger) *ProgressRecorder {
	if clk == nil {
		clk = clock.New()
	}
	return &ProgressRecorder{
		vars:    vars,
		clock:   clk,
		started: clk.Now(),
		logger:  logger,
	}
}

// OnNodeExplored 任何错误（包括 panic）都只计数，不能抛回求解器
func (r *ProgressRecorder) OnNodeExplored(info mip.ProgressInfo) {
	defer func() {
		if p := recover(); p != nil {
			r.fault(fmt.Errorf("回调 panic: %v", p))
		}
	}()
	if err := r.record(info); err != nil {
		r.fault(err)
	}
}

func (r *ProgressRecorder) record(info mip.ProgressInfo) error {
	solcnt := info.SolCount()
	phase := info.Phase()
	rel, err := info.NodeRel(r.vars)
	if err != nil {
		return fmt.Errorf("读取节点松弛解失败: %w", err)
	}

	nonZero := 0
	for _, v := range rel {
		if v > 0 {
			nonZero++
		}
	}

	// 时钟回拨时保持单调
	elapsed := r.clock.Since(r.started).Milliseconds()
	if elapsed < r.lastMS {
		elapsed = r.lastMS
	}
	r.lastMS = elapsed

	r.samples = append(r.samples, model.MetricSample{
		NonZeroCount: nonZero,
		Phase:        int(phase),
		SolCnt:       solcnt,
		ElapsedMS:    elapsed,
	})
	return nil
}

func (r *ProgressRecorder) fault(err error) {
	r.errors++
	callbackFaultsTotal.Inc()
	if r.errors == 1 {
		r.logger.Warn().Err(err).Msg("回调出错，已忽略（后续错误只计数）")
	}
}

func (r *ProgressRecorder) Samples() []model.MetricSample { return r.samples }

func (r *ProgressRecorder) Errors() int { return r.errors }

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"mip-lab/internal/db"
	"mip-lab/internal/lns"
	"mip-lab/internal/mip"
	"mip-lab/internal/model"
	"mip-lab/internal/solution"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// JobState 作业状态机：Configured -> Solving -> Harvesting -> Persisted，任一步出错进入 Failed
type JobState int

const (
	JobConfigured JobState = iota
	JobSolving
	JobHarvesting
	JobPersisted
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobConfigured:
		return "configured"
	case JobSolving:
		return "solving"
	case JobHarvesting:
		return "harvesting"
	case JobPersisted:
		return "persisted"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// JobReport 单个作业的执行情况。失败时 Result 为 nil
type JobReport struct {
	Job    *model.Job             `json:"job"`
	Result *model.SolverRunResult `json:"result,omitempty"`
	State  JobState               `json:"-"`
	// StateName 便于 JSON 报告阅读
	StateName string `json:"state"`

	HasReference   bool   `json:"has_reference"`
	FixedIndices   []int  `json:"fixed_indices,omitempty"`
	CallbackErrors int    `json:"callback_errors"`
	MetricsSaved   int    `json:"metrics_saved"`
	Error          string `json:"error,omitempty"`
}

func (r *JobReport) setState(s JobState) {
	r.State = s
	r.StateName = s.String()
}

type JobRunner struct {
	env          *mip.Env
	store        *db.Store
	instancesDir string
	batchSize    int
	nodeLimit    int
	clock        clock.Clock
}

type JobRunnerOption func(*JobRunner)

// WithClock 替换回调使用的时钟，测试里传 clock.NewMock()
func WithClock(c clock.Clock) JobRunnerOption {
	return func(r *JobRunner) { r.clock = c }
}

// WithNodeLimit 限制分支定界节点数，0 表示不限制
func WithNodeLimit(n int) JobRunnerOption {
	return func(r *JobRunner) { r.nodeLimit = n }
}

func NewJobRunner(env *mip.Env, store *db.Store, instancesDir string, metricBatchSize int, opts ...JobRunnerOption) *JobRunner {
	r := &JobRunner{
		env:          env,
		store:        store,
		instancesDir: instancesDir,
		batchSize:    metricBatchSize,
		clock:        clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InstancePath 实例对应的问题文件
func (r *JobRunner) InstancePath(instanceID string) string {
	return filepath.Join(r.instancesDir, instanceID+".yaml")
}

// Run 执行一个作业并落库。返回错误时数据库里不会有该作业的任何记录，
// 调用方记录日志后继续下一个作业即可
func (r *JobRunner) Run(ctx context.Context, job *model.Job) (*JobReport, error) {
	logger := log.Ctx(ctx).With().
		Str("job_group", job.GroupName).
		Str("instance", job.InstanceID).
		Int64("seed", job.Seed).
		Logger()
	report := &JobReport{Job: job}
	report.setState(JobConfigured)

	fail := func(err error) (*JobReport, error) {
		report.setState(JobFailed)
		report.Error = err.Error()
		jobsTotal.WithLabelValues(job.GroupName, outcomeFailed).Inc()
		logger.Error().Err(err).Msg("作业失败")
		return report, err
	}

	if err := validateJob(job); err != nil {
		return fail(err)
	}
	if _, err := r.store.GetInstance(ctx, job.InstanceID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fail(fmt.Errorf("%w: %w", ErrConfiguration, err))
		}
		return fail(err)
	}

	m, err := r.env.ReadModel(r.InstancePath(job.InstanceID))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	m.SetParams(mip.Params{
		TimeLimit: time.Duration(job.TimeLimitS) * time.Second,
		Seed:      job.Seed,
		NodeLimit: r.nodeLimit,
	})
	// 0/1 变量的顺序只在这里取一次，参考解下标、warm start、LNS、回调都基于它
	binVars := m.BinaryVars()

	if job.WarmStart || job.EnableLNS {
		ref, ok, err := r.referenceSolution(ctx, job.InstanceID, len(binVars), logger)
		if err != nil {
			return fail(err)
		}
		report.HasReference = ok
		if ok {
			if err := r.applyHeuristics(m, binVars, ref, job, report); err != nil {
				return fail(err)
			}
		} else {
			logger.Info().Msg("没有可用的参考解，按普通求解执行")
		}
	}

	recorder := NewProgressRecorder(binVars, r.clock, logger)
	m.SetCallback(recorder)

	report.setState(JobSolving)
	started := time.Now()
	err = m.Optimize()
	solveSeconds.WithLabelValues(job.GroupName).Observe(time.Since(started).Seconds())
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSolver, err))
	}

	report.setState(JobHarvesting)
	result, err := harvest(m, binVars)
	if err != nil {
		return fail(err)
	}
	result.NumFixed = len(report.FixedIndices)
	result.CallbackErrors = recorder.Errors()
	report.CallbackErrors = recorder.Errors()

	metrics := recorder.Samples()
	if err := r.store.SaveJobOutcome(ctx, job, result, metrics, r.batchSize); err != nil {
		return fail(err)
	}
	report.Result = result
	report.MetricsSaved = len(metrics)
	report.setState(JobPersisted)

	jobsTotal.WithLabelValues(job.GroupName, outcomePersisted).Inc()
	metricSamplesTotal.Add(float64(len(metrics)))
	logger.Info().
		Uint("job_id", job.ID).
		Str("status", mip.Status(result.Status).String()).
		Float64("obj_val", result.ObjVal).
		Int("sol_count", result.SolCount).
		Int("metrics", len(metrics)).
		Msg("作业完成")
	return report, nil
}

func validateJob(job *model.Job) error {
	if job.InstanceID == "" {
		return fmt.Errorf("%w: instance_id 不能为空", ErrConfiguration)
	}
	if job.GroupName == "" {
		return fmt.Errorf("%w: group_name 不能为空", ErrConfiguration)
	}
	if job.TimeLimitS <= 0 {
		return fmt.Errorf("%w: time_limit_s 必须大于 0，当前 %d", ErrConfiguration, job.TimeLimitS)
	}
	if job.EnableLNS && (math.IsNaN(job.FixingRatio) || job.FixingRatio < 0 || job.FixingRatio >= 1) {
		return fmt.Errorf("%w: fixing_ratio %v 不在 [0,1) 内", ErrConfiguration, job.FixingRatio)
	}
	return nil
}

// referenceSolution 取该实例目标值最低的历史解。解码失败或下标越界都按"没有参考解"处理
func (r *JobRunner) referenceSolution(ctx context.Context, instanceID string, numBin int, logger zerolog.Logger) ([]int, bool, error) {
	text, ok, err := r.store.BestSolution(ctx, instanceID)
	if err != nil || !ok {
		return nil, false, err
	}
	ref, err := solution.Decode(text)
	if err != nil {
		logger.Warn().Err(fmt.Errorf("%w: %w", ErrEncoding, err)).Msg("参考解无法解码，忽略")
		return nil, false, nil
	}
	for _, idx := range ref {
		if idx < 0 || idx >= numBin {
			logger.Warn().Int("index", idx).Int("num_bin_vars", numBin).Msg("参考解下标超出 0/1 变量个数，忽略")
			return nil, false, nil
		}
	}
	return ref, true, nil
}

func (r *JobRunner) applyHeuristics(m *mip.Model, binVars []*mip.Var, ref []int, job *model.Job, report *JobReport) error {
	if job.WarmStart {
		if err := lns.ApplyWarmStart(binVars, ref); err != nil {
			return fmt.Errorf("%w: %w", ErrSolver, err)
		}
	}
	if job.EnableLNS {
		fixed, err := lns.ApplyNeighborhood(m, binVars, ref, job.FixingRatio, job.Seed)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSolver, err)
		}
		report.FixedIndices = fixed
	}
	return nil
}

// harvest 读取终止属性；有可行解时提取取值为 1 的 0/1 变量下标
func harvest(m *mip.Model, binVars []*mip.Var) (*model.SolverRunResult, error) {
	attrs := m.Attributes()
	result := &model.SolverRunResult{
		MIPGap:     attrs.MIPGap,
		Runtime:    attrs.Runtime,
		SolCount:   attrs.SolCount,
		NodeCount:  attrs.NodeCount,
		Status:     int(attrs.Status),
		ObjVal:     attrs.ObjVal,
		MaxMemUsed: attrs.MaxMemUsed,
		NumVars:    m.NumVars(),
		NumConstrs: m.NumConstrs(),
		NumBinVars: len(binVars),
		NumIntVars: m.NumIntVars(),
	}
	if attrs.SolCount > 0 {
		values, err := m.Values(binVars)
		if err != nil {
			return nil, fmt.Errorf("%w: 读取解失败: %w", ErrSolver, err)
		}
		result.Solution = solution.Encode(solution.Extract(values, solution.DefaultTolerance))
	}
	return result, nil
}

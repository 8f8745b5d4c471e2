package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"mip-lab/internal/config"
	"mip-lab/internal/db"
	"mip-lab/internal/model"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// 实验组
const (
	GroupGRBOnly   = "grb_only"
	GroupWarmStart = "warm_start"
	GroupLNS       = "lns"
	GroupSelected  = "selected"
)

// LNSGroupName lns 组按固定比例拆分，例如 lns_0.20
func LNSGroupName(ratio float64) string {
	return fmt.Sprintf("lns_%.2f", ratio)
}

type BatchRequest struct {
	Group string `json:"group"`
	// 以下为空时取配置
	TimeLimitS   int       `json:"time_limit_s"`
	FixingRatios []float64 `json:"fixing_ratios"`
	Seeds        []int64   `json:"seeds"`
}

type BatchResult struct {
	RunID     uint                  `json:"run_id"`
	UUID      string                `json:"uuid"`
	Group     string                `json:"group"`
	Planned   int                   `json:"planned"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Jobs      []*JobReport          `json:"jobs"`
	Stats     map[string]GroupStats `json:"stats"`
	Tests     map[string]ZTest      `json:"tests"`

	ResultPath     string   `json:"result_path"`
	ReportPath     string   `json:"report_path"`
	ReportMarkdown string   `json:"-"`
	Errors         []string `json:"errors"`

	// JobErrors 各作业错误的汇总，没有失败时为 nil
	JobErrors error `json:"-"`
}

type BatchRunner struct {
	jobs  *JobRunner
	store *db.Store
	cfg   config.ExperimentConfig
}

func NewBatchRunner(jobs *JobRunner, store *db.Store, cfg config.ExperimentConfig) *BatchRunner {
	return &BatchRunner{
		jobs:  jobs,
		store: store,
		cfg:   cfg,
	}
}

func (b *BatchRunner) normalize(req BatchRequest) BatchRequest {
	if req.TimeLimitS <= 0 {
		req.TimeLimitS = b.cfg.TimeLimitS
	}
	if len(req.FixingRatios) == 0 {
		req.FixingRatios = b.cfg.FixingRatios
	}
	if len(req.Seeds) == 0 {
		req.Seeds = b.cfg.Seeds
	}
	return req
}

// PlanJobs 按实验组生成作业（尚未落库）。grb_only 覆盖全部实例，其余组只跑已选中的实例
func (b *BatchRunner) PlanJobs(ctx context.Context, req BatchRequest) ([]*model.Job, error) {
	req = b.normalize(req)
	if req.TimeLimitS <= 0 {
		return nil, fmt.Errorf("%w: time_limit_s 必须大于 0", ErrConfiguration)
	}

	selectedOnly := req.Group != GroupGRBOnly
	instances, err := b.store.ListInstances(ctx, selectedOnly)
	if err != nil {
		return nil, err
	}

	var jobs []*model.Job
	switch req.Group {
	case GroupGRBOnly:
		for _, inst := range instances {
			jobs = append(jobs, &model.Job{InstanceID: inst.ID, TimeLimitS: req.TimeLimitS, GroupName: GroupGRBOnly})
		}
	case GroupWarmStart:
		for _, inst := range instances {
			jobs = append(jobs, &model.Job{InstanceID: inst.ID, TimeLimitS: req.TimeLimitS, GroupName: GroupWarmStart, WarmStart: true})
		}
	case GroupLNS:
		for _, ratio := range req.FixingRatios {
			if math.IsNaN(ratio) || ratio < 0 || ratio >= 1 {
				return nil, fmt.Errorf("%w: fixing_ratio %v 不在 [0,1) 内", ErrConfiguration, ratio)
			}
			for _, seed := range req.Seeds {
				for _, inst := range instances {
					jobs = append(jobs, &model.Job{
						InstanceID:  inst.ID,
						TimeLimitS:  req.TimeLimitS,
						GroupName:   LNSGroupName(ratio),
						WarmStart:   true,
						EnableLNS:   true,
						FixingRatio: ratio,
						Seed:        seed,
					})
				}
			}
		}
	case GroupSelected:
		for _, inst := range instances {
			jobs = append(jobs, &model.Job{
				InstanceID:  inst.ID,
				TimeLimitS:  req.TimeLimitS,
				GroupName:   GroupSelected,
				WarmStart:   true,
				EnableLNS:   true,
				FixingRatio: *b.cfg.SelectedFixingRatio,
			})
		}
	default:
		return nil, fmt.Errorf("%w: 未知实验组 %q", ErrConfiguration, req.Group)
	}
	return jobs, nil
}

// Run 顺序执行整组作业。单个作业失败只记录，不影响后续作业；
// 返回的 error 只表示批次本身无法开始
func (b *BatchRunner) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	req = b.normalize(req)
	jobs, err := b.PlanJobs(ctx, req)
	if err != nil {
		return nil, err
	}

	ratiosJSON, _ := json.Marshal(req.FixingRatios)
	seedsJSON, _ := json.Marshal(req.Seeds)
	run := &model.BatchRun{
		UUID:       uuid.NewString(),
		Group:      req.Group,
		TimeLimitS: req.TimeLimitS,
		RatiosJSON: string(ratiosJSON),
		SeedsJSON:  string(seedsJSON),
		Planned:    len(jobs),
	}
	if err := b.store.CreateBatchRun(ctx, run); err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx).With().Str("batch", run.UUID).Str("group", req.Group).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Int("jobs", len(jobs)).Msg("开始批次")

	result := &BatchResult{
		RunID:   run.ID,
		UUID:    run.UUID,
		Group:   req.Group,
		Planned: len(jobs),
		Jobs:    make([]*JobReport, 0, len(jobs)),
		Stats:   map[string]GroupStats{},
		Tests:   map[string]ZTest{},
	}

	var merr *multierror.Error
	for i, job := range jobs {
		job.BatchRunID = run.ID
		logger.Info().Msgf("作业 %d/%d: %s", i+1, len(jobs), job.InstanceID)
		report, err := b.jobs.Run(ctx, job)
		result.Jobs = append(result.Jobs, report)
		if err != nil {
			result.Failed++
			merr = multierror.Append(merr, fmt.Errorf("instance=%s group=%s seed=%d: %w", job.InstanceID, job.GroupName, job.Seed, err))
			result.Errors = append(result.Errors, fmt.Sprintf("instance=%s group=%s seed=%d: %v", job.InstanceID, job.GroupName, job.Seed, err))
			continue
		}
		result.Succeeded++
	}
	result.JobErrors = merr.ErrorOrNil()

	stats, tests, err := BatchStats(ctx, b.store, run.ID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("统计失败: %v", err))
	} else {
		result.Stats, result.Tests = stats, tests
	}

	run.Succeeded, run.Failed = result.Succeeded, result.Failed
	if err := b.writeOutputs(run, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if err := b.store.SaveBatchRun(ctx, run); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	logger.Info().
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Str("report", result.ReportPath).
		Msg("批次结束")
	return result, nil
}

func (b *BatchRunner) writeOutputs(run *model.BatchRun, result *BatchResult) error {
	outDir := b.cfg.OutputDir
	if outDir == "" {
		outDir = "outputs"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	result.ResultPath = filepath.Join(outDir, fmt.Sprintf("batch_%d_%s.json", run.ID, run.Group))
	result.ReportPath = filepath.Join(outDir, fmt.Sprintf("batch_%d_%s.md", run.ID, run.Group))
	result.ReportMarkdown = RenderBatchMarkdown(run, result)

	b1, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化批次结果失败: %w", err)
	}
	if err := os.WriteFile(result.ResultPath, b1, 0o644); err != nil {
		return fmt.Errorf("写入批次结果失败: %w", err)
	}
	if err := os.WriteFile(result.ReportPath, []byte(result.ReportMarkdown), 0o644); err != nil {
		return fmt.Errorf("写入批次报告失败: %w", err)
	}
	run.ResultPath = result.ResultPath
	run.ReportPath = result.ReportPath
	return nil
}

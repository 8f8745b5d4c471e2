package db

import (
	"context"
	"errors"
	"fmt"

	"mip-lab/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("记录不存在")

// Store 实验数据的读写入口，所有作业共用一个
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) DB() *gorm.DB { return s.db }

// JobResult 作业及其求解结果（失败作业不会落库，所以 Result 总是存在）
type JobResult struct {
	Job    model.Job             `json:"job"`
	Result model.SolverRunResult `json:"result"`
}

type JobFilter struct {
	GroupName  string
	InstanceID string
	BatchRunID uint
	Limit      int
}

// UpsertInstance 已存在时只更新名称和变量计数，不动 selected 与最好目标值
func (s *Store) UpsertInstance(ctx context.Context, inst *model.Instance) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "num_bin_vars", "num_int_vars", "updated_at"}),
	}).Create(inst).Error
	if err != nil {
		return fmt.Errorf("写入实例 %s 失败: %w", inst.ID, err)
	}
	return nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (*model.Instance, error) {
	var inst model.Instance
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&inst).Error; err != nil {
		return nil, wrapNotFound(err, "实例 %s", id)
	}
	return &inst, nil
}

func (s *Store) ListInstances(ctx context.Context, selectedOnly bool) ([]model.Instance, error) {
	var out []model.Instance
	q := s.db.WithContext(ctx).Order("id")
	if selectedOnly {
		q = q.Where("selected = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询实例失败: %w", err)
	}
	return out, nil
}

// SetSelected 把给定实例标记为选中
func (s *Store) SetSelected(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Model(&model.Instance{}).Where("id IN ?", ids).Update("selected", true)
	if res.Error != nil {
		return 0, fmt.Errorf("更新选中实例失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// BestSolution 该实例目标值最低且解非空的结果；目标值相同时取最早写入的。
// 没有时 ok 为 false
func (s *Store) BestSolution(ctx context.Context, instanceID string) (solution string, ok bool, err error) {
	var r model.SolverRunResult
	err = s.db.WithContext(ctx).
		Joins("JOIN jobs ON jobs.id = solver_run_results.job_id").
		Where("jobs.instance_id = ? AND solver_run_results.sol_count > 0 AND solver_run_results.solution <> ''", instanceID).
		Order("solver_run_results.obj_val ASC, solver_run_results.id ASC").
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("查询实例 %s 的参考解失败: %w", instanceID, err)
	}
	return r.Solution, true, nil
}

// SaveJobOutcome 在一个事务里依次写入作业、求解结果和回调指标（分批），
// 任何一步失败都整体回滚
func (s *Store) SaveJobOutcome(ctx context.Context, job *model.Job, result *model.SolverRunResult, metrics []model.MetricSample, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("写入作业失败: %w", err)
		}
		result.JobID = job.ID
		if err := tx.Create(result).Error; err != nil {
			return fmt.Errorf("写入求解结果失败: %w", err)
		}
		if len(metrics) == 0 {
			return nil
		}
		for i := range metrics {
			metrics[i].JobID = job.ID
		}
		if err := tx.CreateInBatches(metrics, batchSize).Error; err != nil {
			return fmt.Errorf("写入回调指标失败: %w", err)
		}
		return nil
	})
	if err != nil {
		job.ID = 0
		result.ID, result.JobID = 0, 0
		for i := range metrics {
			metrics[i].ID, metrics[i].JobID = 0, 0
		}
		return err
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id uint) (*JobResult, error) {
	var jr JobResult
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&jr.Job).Error; err != nil {
		return nil, wrapNotFound(err, "作业 %d", id)
	}
	if err := s.db.WithContext(ctx).Where("job_id = ?", id).Take(&jr.Result).Error; err != nil {
		return nil, wrapNotFound(err, "作业 %d 的求解结果", id)
	}
	return &jr, nil
}

// ListJobs 按创建时间倒序
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]JobResult, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if f.GroupName != "" {
		q = q.Where("group_name = ?", f.GroupName)
	}
	if f.InstanceID != "" {
		q = q.Where("instance_id = ?", f.InstanceID)
	}
	if f.BatchRunID != 0 {
		q = q.Where("batch_run_id = ?", f.BatchRunID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var jobs []model.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("查询作业失败: %w", err)
	}
	return s.attachResults(ctx, jobs)
}

// LatestResultsForGroup 每个实例在该组中最近的一次作业
func (s *Store) LatestResultsForGroup(ctx context.Context, group string) ([]JobResult, error) {
	var jobs []model.Job
	if err := s.db.WithContext(ctx).
		Where("group_name = ?", group).
		Order("created_at DESC, id DESC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("查询 %s 组作业失败: %w", group, err)
	}
	seen := make(map[string]bool)
	latest := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if seen[j.InstanceID] {
			continue
		}
		seen[j.InstanceID] = true
		latest = append(latest, j)
	}
	return s.attachResults(ctx, latest)
}

func (s *Store) attachResults(ctx context.Context, jobs []model.Job) ([]JobResult, error) {
	if len(jobs) == 0 {
		return []JobResult{}, nil
	}
	ids := make([]uint, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	var results []model.SolverRunResult
	if err := s.db.WithContext(ctx).Where("job_id IN ?", ids).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("查询求解结果失败: %w", err)
	}
	byJob := make(map[uint]model.SolverRunResult, len(results))
	for _, r := range results {
		byJob[r.JobID] = r
	}
	out := make([]JobResult, 0, len(jobs))
	for _, j := range jobs {
		r, ok := byJob[j.ID]
		if !ok {
			continue
		}
		out = append(out, JobResult{Job: j, Result: r})
	}
	return out, nil
}

func (s *Store) ListMetrics(ctx context.Context, jobID uint) ([]model.MetricSample, error) {
	var out []model.MetricSample
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询作业 %d 的回调指标失败: %w", jobID, err)
	}
	return out, nil
}

// ListGroups 出现过的全部实验组
func (s *Store) ListGroups(ctx context.Context) ([]string, error) {
	var groups []string
	if err := s.db.WithContext(ctx).Model(&model.Job{}).Distinct("group_name").Order("group_name").Pluck("group_name", &groups).Error; err != nil {
		return nil, fmt.Errorf("查询实验组失败: %w", err)
	}
	return groups, nil
}

func (s *Store) CreateBatchRun(ctx context.Context, run *model.BatchRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("创建批次记录失败: %w", err)
	}
	return nil
}

func (s *Store) SaveBatchRun(ctx context.Context, run *model.BatchRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("更新批次记录失败: %w", err)
	}
	return nil
}

// UpdateBestKnownObjVals 每个实例取所有有解作业的最小目标值
func (s *Store) UpdateBestKnownObjVals(ctx context.Context) (int, error) {
	var rows []struct {
		InstanceID string
		MinObj     float64
	}
	if err := s.db.WithContext(ctx).Model(&model.SolverRunResult{}).
		Select("jobs.instance_id AS instance_id, MIN(solver_run_results.obj_val) AS min_obj").
		Joins("JOIN jobs ON jobs.id = solver_run_results.job_id").
		Where("solver_run_results.sol_count > 0").
		Group("jobs.instance_id").
		Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("统计最好目标值失败: %w", err)
	}
	for _, r := range rows {
		if err := s.db.WithContext(ctx).Model(&model.Instance{}).
			Where("id = ?", r.InstanceID).
			Update("best_known_obj_val", r.MinObj).Error; err != nil {
			return 0, fmt.Errorf("更新实例 %s 最好目标值失败: %w", r.InstanceID, err)
		}
	}
	return len(rows), nil
}

// PrimalGapRow 计算 primal gap 需要的字段
type PrimalGapRow struct {
	ResultID        uint
	ObjVal          float64
	BestKnownObjVal *float64
}

func (s *Store) ListPrimalGapRows(ctx context.Context) ([]PrimalGapRow, error) {
	var rows []PrimalGapRow
	if err := s.db.WithContext(ctx).Model(&model.SolverRunResult{}).
		Select("solver_run_results.id AS result_id, solver_run_results.obj_val AS obj_val, instances.best_known_obj_val AS best_known_obj_val").
		Joins("JOIN jobs ON jobs.id = solver_run_results.job_id").
		Joins("JOIN instances ON instances.id = jobs.instance_id").
		Where("solver_run_results.sol_count > 0").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询 primal gap 数据失败: %w", err)
	}
	return rows, nil
}

func (s *Store) SetPrimalGap(ctx context.Context, resultID uint, gap *float64) error {
	if err := s.db.WithContext(ctx).Model(&model.SolverRunResult{}).
		Where("id = ?", resultID).
		Update("primal_gap", gap).Error; err != nil {
		return fmt.Errorf("更新结果 %d 的 primal gap 失败: %w", resultID, err)
	}
	return nil
}

func wrapNotFound(err error, format string, args ...interface{}) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("查询%s失败: %w", what, err)
}

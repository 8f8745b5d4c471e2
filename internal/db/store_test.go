package db_test

import (
	"context"
	"testing"
	"time"

	"mip-lab/internal/db"
	"mip-lab/internal/db/dbtest"
	"mip-lab/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveJob(t *testing.T, s *db.Store, instanceID, group string, obj float64, solution string, createdAt time.Time) (*model.Job, *model.SolverRunResult) {
	t.Helper()
	job := &model.Job{InstanceID: instanceID, GroupName: group, TimeLimitS: 10, CreatedAt: createdAt}
	res := &model.SolverRunResult{ObjVal: obj, Solution: solution, Status: 2}
	if solution != "" {
		res.SolCount = 1
	}
	require.NoError(t, s.SaveJobOutcome(context.Background(), job, res, nil, 10))
	return job, res
}

func TestUpsertInstanceKeepsSelection(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)

	require.NoError(t, s.UpsertInstance(ctx, &model.Instance{ID: "p1", Name: "p1", NumBinVars: 3}))
	n, err := s.SetSelected(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.UpsertInstance(ctx, &model.Instance{ID: "p1", Name: "renamed", NumBinVars: 5, NumIntVars: 6}))
	inst, err := s.GetInstance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", inst.Name)
	assert.Equal(t, 5, inst.NumBinVars)
	assert.True(t, inst.Selected)

	selected, err := s.ListInstances(ctx, true)
	require.NoError(t, err)
	assert.Len(t, selected, 1)

	_, err = s.GetInstance(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestSaveJobOutcomeBatchesMetrics(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)

	metrics := make([]model.MetricSample, 25)
	for i := range metrics {
		metrics[i] = model.MetricSample{NonZeroCount: i, ElapsedMS: int64(i)}
	}
	job := &model.Job{InstanceID: "p1", GroupName: "grb_only"}
	res := &model.SolverRunResult{Status: 2, SolCount: 1, Solution: "0,2"}
	require.NoError(t, s.SaveJobOutcome(ctx, job, res, metrics, 10))

	require.NotZero(t, job.ID)
	assert.Equal(t, job.ID, res.JobID)

	got, err := s.ListMetrics(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got, 25)
	for i, m := range got {
		assert.Equal(t, job.ID, m.JobID)
		assert.Equal(t, int64(i), m.ElapsedMS)
	}

	jr, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "0,2", jr.Result.Solution)
}

func TestSaveJobOutcomeRollsBack(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)

	// 两条指标主键相同，批量写入失败，作业和结果也不能留下
	metrics := []model.MetricSample{{ID: 7}, {ID: 7}}
	job := &model.Job{InstanceID: "p1", GroupName: "g"}
	err := s.SaveJobOutcome(ctx, job, &model.SolverRunResult{}, metrics, 10)
	require.Error(t, err)
	assert.Zero(t, job.ID)

	jobs, err := s.ListJobs(ctx, db.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	var count int64
	require.NoError(t, s.DB().Model(&model.SolverRunResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBestSolution(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)
	now := time.Now()

	_, ok, err := s.BestSolution(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	saveJob(t, s, "p1", "grb_only", 10, "1,2", now)
	saveJob(t, s, "p1", "grb_only", 5, "", now)    // 没有解，不参与
	saveJob(t, s, "p1", "grb_only", 7, "3", now)   // 最低
	saveJob(t, s, "p1", "warm_start", 7, "4", now) // 同分，后写入
	saveJob(t, s, "p2", "grb_only", 1, "0", now)

	sol, ok, err := s.BestSolution(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", sol)
}

func TestLatestResultsForGroup(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)
	base := time.Now().Add(-time.Hour)

	saveJob(t, s, "p1", "grb_only", 10, "1", base)
	latest, _ := saveJob(t, s, "p1", "grb_only", 9, "2", base.Add(time.Minute))
	saveJob(t, s, "p1", "lns_0.20", 1, "3", base.Add(2*time.Minute))
	saveJob(t, s, "p2", "grb_only", 3, "", base)

	rows, err := s.LatestResultsForGroup(ctx, "grb_only")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byInstance := map[string]db.JobResult{}
	for _, r := range rows {
		byInstance[r.Job.InstanceID] = r
	}
	assert.Equal(t, latest.ID, byInstance["p1"].Job.ID)
	assert.Equal(t, "2", byInstance["p1"].Result.Solution)

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"grb_only", "lns_0.20"}, groups)
}

func TestBestKnownObjValAndPrimalGapRows(t *testing.T) {
	ctx := context.Background()
	s := dbtest.New(t)
	now := time.Now()

	require.NoError(t, s.UpsertInstance(ctx, &model.Instance{ID: "p1", Name: "p1"}))
	require.NoError(t, s.UpsertInstance(ctx, &model.Instance{ID: "p2", Name: "p2"}))
	saveJob(t, s, "p1", "grb_only", 12, "1", now)
	_, best := saveJob(t, s, "p1", "grb_only", 8, "2", now)
	saveJob(t, s, "p2", "grb_only", 3, "", now)

	n, err := s.UpdateBestKnownObjVals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p1, err := s.GetInstance(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p1.BestKnownObjVal)
	assert.Equal(t, 8.0, *p1.BestKnownObjVal)

	p2, err := s.GetInstance(ctx, "p2")
	require.NoError(t, err)
	assert.Nil(t, p2.BestKnownObjVal)

	rows, err := s.ListPrimalGapRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.NotNil(t, r.BestKnownObjVal)
		assert.Equal(t, 8.0, *r.BestKnownObjVal)
	}

	gap := 0.0
	require.NoError(t, s.SetPrimalGap(ctx, best.ID, &gap))
	jr, err := s.GetJob(ctx, best.JobID)
	require.NoError(t, err)
	require.NotNil(t, jr.Result.PrimalGap)
	assert.Equal(t, 0.0, *jr.Result.PrimalGap)
}

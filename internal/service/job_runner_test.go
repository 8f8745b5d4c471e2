package service

import (
	"context"
	"errors"
	"testing"

	"mip-lab/internal/db"
	"mip-lab/internal/mip"
	"mip-lab/internal/model"
	"mip-lab/internal/solution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRunnerSolvesToyToOptimality(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"toy": toyProblem})

	job := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupGRBOnly}
	report, err := f.runner.Run(ctx, job)
	require.NoError(t, err)

	assert.Equal(t, JobPersisted, report.State)
	require.NotZero(t, job.ID)
	require.NotNil(t, report.Result)
	assert.Equal(t, int(mip.StatusOptimal), report.Result.Status)
	assert.Equal(t, "0,2", report.Result.Solution)
	assert.InDelta(t, 3.0, report.Result.ObjVal, 1e-6)
	assert.Equal(t, 3, report.Result.NumBinVars)
	assert.Equal(t, 3, report.Result.NumVars)
	assert.Equal(t, 2, report.Result.NumConstrs)
	assert.False(t, report.HasReference)

	saved, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "0,2", saved.Result.Solution)

	metrics, err := f.store.ListMetrics(ctx, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, metrics, "每个探索过的节点都有一条指标")
	assert.Len(t, metrics, report.MetricsSaved)
	for _, m := range metrics {
		assert.LessOrEqual(t, m.NonZeroCount, 3)
	}
}

func TestJobRunnerLNSIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"knapsack8": knapsackProblem})

	base := &model.Job{InstanceID: "knapsack8", TimeLimitS: 10, GroupName: GroupGRBOnly}
	baseReport, err := f.runner.Run(ctx, base)
	require.NoError(t, err)
	ref, err := solution.Decode(baseReport.Result.Solution)
	require.NoError(t, err)
	inRef := map[int]bool{}
	for _, i := range ref {
		inRef[i] = true
	}

	run := func() *JobReport {
		job := &model.Job{
			InstanceID:  "knapsack8",
			TimeLimitS:  10,
			GroupName:   LNSGroupName(0.5),
			WarmStart:   true,
			EnableLNS:   true,
			FixingRatio: 0.5,
			Seed:        1,
		}
		report, err := f.runner.Run(ctx, job)
		require.NoError(t, err)
		require.True(t, report.HasReference)
		return report
	}
	first, second := run(), run()

	require.Len(t, first.FixedIndices, 4)
	assert.Equal(t, first.FixedIndices, second.FixedIndices)
	assert.Equal(t, 4, first.Result.NumFixed)

	for _, r := range []*JobReport{first, second} {
		got, err := solution.Decode(r.Result.Solution)
		require.NoError(t, err)
		inGot := map[int]bool{}
		for _, i := range got {
			inGot[i] = true
		}
		for _, i := range r.FixedIndices {
			assert.Equal(t, inRef[i], inGot[i], "固定变量 %d 必须等于参考解", i)
		}
	}
}

type faultEngine struct{}

func (faultEngine) Solve(m *mip.Model, cb mip.Callback) (*mip.Outcome, error) {
	for i := 0; i < 3; i++ {
		cb.OnNodeExplored(fakeInfo{solCount: i, rel: []float64{1, 0, 1}})
	}
	return nil, errors.New("license expired")
}

func TestJobRunnerSolverFaultWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"toy": toyProblem}, mip.WithEngine(faultEngine{}))

	job := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupGRBOnly}
	report, err := f.runner.Run(ctx, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSolver)
	assert.Equal(t, JobFailed, report.State)
	assert.Zero(t, job.ID)
	assert.Nil(t, report.Result)

	assert.Zero(t, countRows(t, f.store, &model.Job{}))
	assert.Zero(t, countRows(t, f.store, &model.SolverRunResult{}))
	assert.Zero(t, countRows(t, f.store, &model.MetricSample{}))
}

func TestJobRunnerConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"toy": toyProblem})
	require.NoError(t, f.store.UpsertInstance(ctx, &model.Instance{ID: "nofile", Name: "nofile"}))

	cases := []struct {
		name string
		job  model.Job
	}{
		{"未登记的实例", model.Job{InstanceID: "missing", TimeLimitS: 10, GroupName: "g"}},
		{"问题文件不存在", model.Job{InstanceID: "nofile", TimeLimitS: 10, GroupName: "g"}},
		{"时间上限为 0", model.Job{InstanceID: "toy", GroupName: "g"}},
		{"固定比例越界", model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: "g", EnableLNS: true, FixingRatio: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := tc.job
			report, err := f.runner.Run(ctx, &job)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Equal(t, JobFailed, report.State)
		})
	}
	assert.Zero(t, countRows(t, f.store, &model.Job{}))
}

func TestJobRunnerIgnoresUnusableReference(t *testing.T) {
	ctx := context.Background()

	for _, text := range []string{"0,x", "0,7", "-1,2"} {
		t.Run(text, func(t *testing.T) {
			f := newFixture(t, map[string]string{"toy": toyProblem})
			prev := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupGRBOnly}
			require.NoError(t, f.store.SaveJobOutcome(ctx, prev, &model.SolverRunResult{SolCount: 1, Solution: text}, nil, 10))

			job := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupSelected, WarmStart: true, EnableLNS: true, FixingRatio: 0.5}
			report, err := f.runner.Run(ctx, job)
			require.NoError(t, err)
			assert.False(t, report.HasReference)
			assert.Empty(t, report.FixedIndices)
			assert.Equal(t, "0,2", report.Result.Solution)
		})
	}
}

func TestJobRunnerWarmStartUsesReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"toy": toyProblem})
	prev := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupGRBOnly}
	require.NoError(t, f.store.SaveJobOutcome(ctx, prev, &model.SolverRunResult{SolCount: 1, ObjVal: 3, Solution: "0,2"}, nil, 10))

	job := &model.Job{InstanceID: "toy", TimeLimitS: 10, GroupName: GroupWarmStart, WarmStart: true}
	report, err := f.runner.Run(ctx, job)
	require.NoError(t, err)
	assert.True(t, report.HasReference)
	assert.Equal(t, "0,2", report.Result.Solution)

	jobs, err := f.store.ListJobs(ctx, db.JobFilter{GroupName: GroupWarmStart})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Job.WarmStart)
}

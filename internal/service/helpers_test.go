package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mip-lab/internal/db"
	"mip-lab/internal/db/dbtest"
	"mip-lab/internal/mip"
	"mip-lab/internal/model"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

const toyProblem = `
name: toy
sense: max
vars:
  - {name: x, type: B, obj: 1}
  - {name: y, type: B, obj: 1}
  - {name: z, type: B, obj: 2}
constraints:
  - {name: c0, terms: {x: 1, y: 2, z: 3}, sense: "<=", rhs: 4}
  - {name: c1, terms: {x: 1, y: 1}, sense: ">=", rhs: 1}
`

const knapsackProblem = `
name: knapsack8
sense: max
vars:
  - {name: i0, type: B, obj: 15}
  - {name: i1, type: B, obj: 10}
  - {name: i2, type: B, obj: 9}
  - {name: i3, type: B, obj: 5}
  - {name: i4, type: B, obj: 13}
  - {name: i5, type: B, obj: 7}
  - {name: i6, type: I, lb: 0, ub: 1, obj: 8}
  - {name: i7, type: B, obj: 11}
  - {name: slack, type: C, lb: 0, ub: 3, obj: 0.5}
constraints:
  - {name: cap, terms: {i0: 6, i1: 5, i2: 4, i3: 3, i4: 7, i5: 4, i6: 5, i7: 6, slack: 1}, sense: "<=", rhs: 20}
  - {name: pick, terms: {i0: 1, i4: 1}, sense: "<=", rhs: 1}
`

type fixture struct {
	store  *db.Store
	dir    string
	runner *JobRunner
	clock  *clock.Mock
}

// newFixture 内存库 + 临时实例目录；problems 为 实例ID -> 问题文件内容，都会登记到库里
func newFixture(t *testing.T, problems map[string]string, opts ...mip.EnvOption) *fixture {
	t.Helper()
	f := &fixture{
		store: dbtest.New(t),
		dir:   t.TempDir(),
		clock: clock.NewMock(),
	}
	for id, src := range problems {
		f.writeProblem(t, id, src)
		require.NoError(t, f.store.UpsertInstance(context.Background(), &model.Instance{ID: id, Name: id}))
	}
	f.runner = NewJobRunner(mip.NewEnv(opts...), f.store, f.dir, 10, WithClock(f.clock))
	return f
}

func (f *fixture) writeProblem(t *testing.T, id, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, id+".yaml"), []byte(src), 0o644))
}

func countRows(t *testing.T, s *db.Store, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(m).Count(&n).Error)
	return n
}

// fakeInfo 手工构造的节点信息
type fakeInfo struct {
	solCount int
	phase    mip.Phase
	rel      []float64
	err      error
}

func (i fakeInfo) SolCount() int    { return i.solCount }
func (i fakeInfo) Phase() mip.Phase { return i.phase }
func (i fakeInfo) NodeRel(vars []*mip.Var) ([]float64, error) {
	if i.err != nil {
		return nil, i.err
	}
	return i.rel, nil
}

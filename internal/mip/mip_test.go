package mip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toyModel = `
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

func parse(t *testing.T, src string) *Model {
	t.Helper()
	m, err := NewEnv().ParseModel([]byte(src))
	require.NoError(t, err)
	return m
}

func TestParseModel(t *testing.T) {
	m := parse(t, toyModel)
	assert.Equal(t, "toy", m.Name)
	assert.Equal(t, Maximize, m.ObjSense)
	assert.Equal(t, 3, m.NumVars())
	assert.Equal(t, 3, m.NumBinVars())
	assert.Equal(t, 3, m.NumIntVars())
	assert.Equal(t, 2, m.NumConstrs())

	c0 := m.Constrs()[0]
	require.Len(t, c0.Terms, 3)
	for i, term := range c0.Terms {
		assert.Equal(t, i, term.Var.Index(), "约束项按变量顺序排列")
	}
}

func TestParseModelRejectsUnknownVariable(t *testing.T) {
	_, err := NewEnv().ParseModel([]byte(`
name: bad
vars:
  - {name: x, type: B}
constraints:
  - {terms: {w: 1}, sense: "<=", rhs: 1}
`))
	require.Error(t, err)
}

func TestIsBinary(t *testing.T) {
	m := NewEnv().NewModel("bin")
	b := m.AddVar("b", Binary, 0, 1, 0)
	i01 := m.AddVar("i01", Integer, 0, 1, 0)
	i02 := m.AddVar("i02", Integer, 0, 2, 0)
	c := m.AddVar("c", Continuous, 0, 1, 0)

	assert.True(t, b.IsBinary())
	assert.True(t, i01.IsBinary())
	assert.False(t, i02.IsBinary())
	assert.False(t, c.IsBinary())
	assert.Equal(t, []*Var{b, i01}, m.BinaryVars())
}

func TestOptimizeToy(t *testing.T) {
	m := parse(t, toyModel)
	require.NoError(t, m.Optimize())

	attrs := m.Attributes()
	assert.Equal(t, StatusOptimal, attrs.Status)
	assert.InDelta(t, 3.0, attrs.ObjVal, 1e-6)
	assert.InDelta(t, 0.0, attrs.MIPGap, 1e-9)
	assert.GreaterOrEqual(t, attrs.SolCount, 1)
	assert.GreaterOrEqual(t, attrs.NodeCount, 1.0)

	values, err := m.Values(m.BinaryVars())
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 1}, values, 1e-6)
}

func TestOptimizeGeneralIntegers(t *testing.T) {
	m := parse(t, `
name: ints
sense: max
vars:
  - {name: x, type: I, obj: 5}
  - {name: y, type: I, obj: 4}
constraints:
  - {terms: {x: 6, y: 4}, sense: "<=", rhs: 24}
  - {terms: {x: 1, y: 2}, sense: "<=", rhs: 6}
`)
	m.SetParams(Params{Seed: 7})
	require.NoError(t, m.Optimize())

	attrs := m.Attributes()
	require.Equal(t, StatusOptimal, attrs.Status)
	assert.InDelta(t, 20.0, attrs.ObjVal, 1e-6)
	assert.Greater(t, attrs.NodeCount, 1.0, "根节点松弛是分数解，需要分支")
}

func TestOptimizeInfeasible(t *testing.T) {
	m := parse(t, `
name: infeasible
vars:
  - {name: x, type: B, obj: 1}
constraints:
  - {terms: {x: 1}, sense: ">=", rhs: 2}
`)
	require.NoError(t, m.Optimize())

	attrs := m.Attributes()
	assert.Equal(t, StatusInfeasible, attrs.Status)
	assert.Equal(t, 0, attrs.SolCount)
	assert.Equal(t, Infinity, attrs.ObjVal)

	_, err := m.Value(m.Vars()[0])
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestOptimizeRedundantEqualities(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		obj    float64
		values []float64
	}{
		{
			name: "重复的等式",
			src: `
name: dup
sense: max
vars:
  - {name: x, type: B, obj: 1}
  - {name: y, type: B, obj: 2}
constraints:
  - {terms: {x: 1, y: 1}, sense: "=", rhs: 1}
  - {terms: {x: 1, y: 1}, sense: "=", rhs: 1}
`,
			obj:    2,
			values: []float64{0, 1},
		},
		{
			name: "等式多于变量",
			src: `
name: dependent
sense: max
vars:
  - {name: x, type: C, obj: 1}
  - {name: y, type: C, obj: 1}
constraints:
  - {terms: {x: 1}, sense: "=", rhs: 1}
  - {terms: {y: 1}, sense: "=", rhs: 1}
  - {terms: {x: 1, y: 1}, sense: "=", rhs: 2}
`,
			obj:    2,
			values: []float64{1, 1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := parse(t, tc.src)
			require.NoError(t, m.Optimize())

			attrs := m.Attributes()
			require.Equal(t, StatusOptimal, attrs.Status)
			assert.InDelta(t, tc.obj, attrs.ObjVal, 1e-6)
			values, err := m.Values(m.Vars())
			require.NoError(t, err)
			assert.InDeltaSlice(t, tc.values, values, 1e-6)
		})
	}
}

func TestOptimizeNodeLimit(t *testing.T) {
	m := parse(t, `
name: knapsack
sense: max
vars:
  - {name: a, type: B, obj: 10}
  - {name: b, type: B, obj: 13}
  - {name: c, type: B, obj: 7}
constraints:
  - {terms: {a: 4, b: 6, c: 3}, sense: "<=", rhs: 8}
`)
	m.SetParams(Params{NodeLimit: 1})
	require.NoError(t, m.Optimize())
	assert.Equal(t, StatusNodeLimit, m.Attributes().Status)
	assert.Equal(t, 1.0, m.Attributes().NodeCount)
}

func TestWarmStartCountsAsSolution(t *testing.T) {
	m := parse(t, toyModel)
	// x=1,y=1 可行但不是最优
	for i, v := range m.BinaryVars() {
		v.SetStart([]float64{1, 1, 0}[i])
	}
	require.NoError(t, m.Optimize())

	attrs := m.Attributes()
	assert.Equal(t, StatusOptimal, attrs.Status)
	assert.InDelta(t, 3.0, attrs.ObjVal, 1e-6)
	assert.Equal(t, 2, attrs.SolCount)
}

func TestCallbackSeesEveryNode(t *testing.T) {
	m := parse(t, toyModel)
	bins := m.BinaryVars()

	calls := 0
	m.SetCallback(CallbackFunc(func(info ProgressInfo) {
		calls++
		rel, err := info.NodeRel(bins)
		require.NoError(t, err)
		assert.Len(t, rel, len(bins))
		assert.Equal(t, PhaseSearch, info.Phase())
	}))
	require.NoError(t, m.Optimize())
	assert.Equal(t, int(m.Attributes().NodeCount), calls)
}

func TestCallbackPanicAbortsSolve(t *testing.T) {
	m := parse(t, toyModel)
	m.SetCallback(CallbackFunc(func(ProgressInfo) {
		panic("boom")
	}))
	err := m.Optimize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAddConstrMergesTerms(t *testing.T) {
	m := NewEnv().NewModel("merge")
	x := m.AddVar("x", Binary, 0, 1, 0)
	y := m.AddVar("y", Binary, 0, 1, 0)

	var expr LinExpr
	expr.AddTerm(1, x).AddTerm(2, y).AddTerm(-1, x).AddConstant(3)
	c, err := m.AddConstr(expr, Equal, 5, "merged")
	require.NoError(t, err)

	require.Len(t, c.Terms, 1)
	assert.Equal(t, y, c.Terms[0].Var)
	assert.Equal(t, 2.0, c.RHS)

	other := NewEnv().NewModel("other").AddVar("z", Binary, 0, 1, 0)
	_, err = m.AddConstr(LinExpr{Terms: []Term{{Coef: 1, Var: other}}}, LessEqual, 1, "foreign")
	assert.Error(t, err)
}

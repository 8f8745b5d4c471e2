package mip

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// BranchAndBound 深度优先分支定界，节点松弛用 gonum 的单纯形法求解。
// 规模只适合实验用的小问题，接口和大型求解器保持一致
type BranchAndBound struct {
	logger zerolog.Logger

	// IntTol 判断整数可行的容差
	IntTol float64
	// MemSampleEvery 每隔多少个节点采样一次内存
	MemSampleEvery int

	now func() time.Time
}

func NewBranchAndBound(logger zerolog.Logger) *BranchAndBound {
	return &BranchAndBound{
		logger:         logger,
		IntTol:         1e-6,
		MemSampleEvery: 256,
		now:            time.Now,
	}
}

type bbNode struct {
	lb, ub []float64
	// bound 父节点松弛目标值，是本节点的下界
	bound float64
	depth int
}

type searchState struct {
	model    *Model
	x        []float64
	obj      float64
	solCount int
	nodes    int
}

func (s *searchState) accept(x []float64, obj float64) {
	s.x = x
	s.obj = obj
	s.solCount++
}

func (s *searchState) cutoff() float64 {
	return s.obj - 1e-9*math.Max(1, math.Abs(s.obj))
}

type nodeInfo struct {
	state *searchState
	x     []float64
}

func (i *nodeInfo) SolCount() int { return i.state.solCount }

func (i *nodeInfo) Phase() Phase {
	if i.state.x == nil {
		return PhaseSearch
	}
	return PhaseImprove
}

func (i *nodeInfo) NodeRel(vars []*Var) ([]float64, error) {
	out := make([]float64, len(vars))
	for k, v := range vars {
		if v == nil || v.model != i.state.model {
			return nil, fmt.Errorf("mip: 第 %d 个变量不属于当前模型", k)
		}
		out[k] = i.x[v.index]
	}
	return out, nil
}

func (b *BranchAndBound) Solve(m *Model, cb Callback) (*Outcome, error) {
	vars := m.Vars()
	n := len(vars)
	params := m.Params()
	sign := float64(m.ObjSense)

	cost := make([]float64, n)
	rootLB := make([]float64, n)
	rootUB := make([]float64, n)
	isInt := make([]bool, n)
	for i, v := range vars {
		cost[i] = sign * v.Obj
		lb, ub := v.LB, v.UB
		if v.IsInteger() {
			isInt[i] = true
			lb = math.Ceil(lb - b.IntTol)
			ub = math.Floor(ub + b.IntTol)
		}
		if ub < lb {
			return &Outcome{Status: StatusInfeasible, ObjBound: Infinity * sign}, nil
		}
		rootLB[i], rootUB[i] = lb, ub
	}

	rng := rand.New(rand.NewSource(params.Seed))
	started := b.now()
	mem := newMemTracker()
	s := &searchState{model: m, obj: math.Inf(1)}

	if x, z, ok := b.completeStart(m, cost, rootLB, rootUB, isInt); ok {
		s.accept(x, z)
		b.logger.Debug().Str("model", m.Name).Float64("obj", sign*z).Msg("warm start 得到初始可行解")
	}

	stack := []*bbNode{{lb: rootLB, ub: rootUB, bound: math.Inf(-1)}}
	status := StatusOptimal
	for len(stack) > 0 {
		if params.TimeLimit > 0 && b.now().Sub(started) >= params.TimeLimit {
			status = StatusTimeLimit
			break
		}
		if params.NodeLimit > 0 && s.nodes >= params.NodeLimit {
			status = StatusNodeLimit
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= s.cutoff() {
			continue
		}

		x, z, err := solveRelaxation(m, cost, nd.lb, nd.ub)
		s.nodes++
		if b.MemSampleEvery > 0 && s.nodes%b.MemSampleEvery == 0 {
			mem.sample()
		}
		if errors.Is(err, errLPInfeasible) {
			continue
		}
		if errors.Is(err, errLPUnbounded) {
			if s.x == nil {
				status = StatusUnbounded
				stack = nil
				break
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if cb != nil {
			if err := invokeCallback(cb, &nodeInfo{state: s, x: x}); err != nil {
				return nil, err
			}
		}

		if z >= s.cutoff() {
			continue
		}
		j := b.pickBranch(x, isInt, rng)
		if j < 0 {
			x, z = b.snap(x, isInt, cost)
			s.accept(x, z)
			continue
		}

		down := &bbNode{lb: nd.lb, ub: cloneWith(nd.ub, j, math.Floor(x[j])), bound: z, depth: nd.depth + 1}
		up := &bbNode{lb: cloneWith(nd.lb, j, math.Ceil(x[j])), ub: nd.ub, bound: z, depth: nd.depth + 1}
		// 后入栈的先探索：优先取值更近的一侧
		if x[j]-math.Floor(x[j]) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}
	mem.sample()

	out := &Outcome{
		Status:     status,
		NodeCount:  float64(s.nodes),
		SolCount:   s.solCount,
		MaxMemUsed: mem.peakGB(),
	}

	bound := s.obj
	if status != StatusOptimal {
		for _, nd := range stack {
			bound = math.Min(bound, nd.bound)
		}
	}
	if status == StatusOptimal && s.x == nil {
		out.Status = StatusInfeasible
	}
	out.ObjBound = clampInf(sign * bound)
	if s.x != nil {
		out.X = s.x
		out.ObjVal = sign * s.obj
	}

	b.logger.Debug().
		Str("model", m.Name).
		Str("status", out.Status.String()).
		Int("nodes", s.nodes).
		Int("sol_count", s.solCount).
		Msg("分支定界结束")
	return out, nil
}

// completeStart 把带初始值提示的整数变量固定住，求一次松弛补全其余变量
func (b *BranchAndBound) completeStart(m *Model, cost, lb, ub []float64, isInt []bool) ([]float64, float64, bool) {
	flb := append([]float64(nil), lb...)
	fub := append([]float64(nil), ub...)
	hinted := false
	for i, v := range m.Vars() {
		val, ok := v.Start()
		if !ok || !isInt[i] {
			continue
		}
		r := math.Round(val)
		if r < lb[i] || r > ub[i] {
			b.logger.Debug().Str("var", v.Name).Float64("start", val).Msg("初始值超出上下界，忽略 warm start")
			return nil, 0, false
		}
		flb[i], fub[i] = r, r
		hinted = true
	}
	if !hinted {
		return nil, 0, false
	}
	x, _, err := solveRelaxation(m, cost, flb, fub)
	if err != nil {
		return nil, 0, false
	}
	if b.pickBranch(x, isInt, nil) >= 0 {
		return nil, 0, false
	}
	x, z := b.snap(x, isInt, cost)
	return x, z, true
}

// pickBranch 选最"分数"的整数变量；并列时用 rng 随机挑一个。都整数时返回 -1
func (b *BranchAndBound) pickBranch(x []float64, isInt []bool, rng *rand.Rand) int {
	best, bestFrac, ties := -1, b.IntTol, 0
	for j, v := range x {
		if !isInt[j] {
			continue
		}
		frac := math.Min(v-math.Floor(v), math.Ceil(v)-v)
		switch {
		case frac > bestFrac+1e-9:
			best, bestFrac, ties = j, frac, 1
		case best >= 0 && math.Abs(frac-bestFrac) <= 1e-9:
			ties++
			if rng != nil && rng.Intn(ties) == 0 {
				best = j
			}
		}
	}
	return best
}

func (b *BranchAndBound) snap(x []float64, isInt []bool, cost []float64) ([]float64, float64) {
	out := make([]float64, len(x))
	for j, v := range x {
		if isInt[j] {
			v = math.Round(v)
		}
		out[j] = v
	}
	return out, dot(cost, out)
}

func invokeCallback(cb Callback, info ProgressInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mip: 回调异常中止求解: %v", r)
		}
	}()
	cb.OnNodeExplored(info)
	return nil
}

func cloneWith(src []float64, j int, v float64) []float64 {
	out := append([]float64(nil), src...)
	out[j] = v
	return out
}

func clampInf(v float64) float64 {
	if v >= Infinity {
		return Infinity
	}
	if v <= -Infinity {
		return -Infinity
	}
	return v
}

type memTracker struct {
	peak uint64
}

func newMemTracker() *memTracker {
	t := &memTracker{}
	t.sample()
	return t
}

func (t *memTracker) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc > t.peak {
		t.peak = ms.HeapAlloc
	}
}

func (t *memTracker) peakGB() float64 {
	return float64(t.peak) / 1e9
}

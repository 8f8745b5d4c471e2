package mip

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Infinity 与常见 MIP 求解器一致的"无穷大"取值（落库时避免 Inf）
const Infinity = 1e100

var ErrNoSolution = errors.New("mip: 模型没有可行解")

type VarType byte

const (
	Continuous VarType = 'C'
	Binary     VarType = 'B'
	Integer    VarType = 'I'
)

type ObjSense int

const (
	Minimize ObjSense = 1
	Maximize ObjSense = -1
)

type Sense byte

const (
	LessEqual    Sense = '<'
	GreaterEqual Sense = '>'
	Equal        Sense = '='
)

// Var 决策变量。索引在加载时确定，之后不再变化
type Var struct {
	model *Model
	index int

	Name string
	Type VarType
	LB   float64
	UB   float64
	Obj  float64

	start    float64
	hasStart bool
}

func (v *Var) Index() int { return v.index }

// IsBinary 声明为 Binary，或整数变量且上下界恰好是 [0,1]
func (v *Var) IsBinary() bool {
	if v.Type == Binary {
		return true
	}
	return v.Type == Integer && v.LB == 0 && v.UB == 1
}

func (v *Var) IsInteger() bool {
	return v.Type == Binary || v.Type == Integer
}

// SetStart 设置初始值提示（warm start），只是建议，不是约束
func (v *Var) SetStart(value float64) {
	v.start = value
	v.hasStart = true
}

func (v *Var) Start() (float64, bool) {
	return v.start, v.hasStart
}

func (v *Var) ClearStart() {
	v.start = 0
	v.hasStart = false
}

type Term struct {
	Coef float64
	Var  *Var
}

// LinExpr 线性表达式 sum(coef*var) + constant
type LinExpr struct {
	Terms    []Term
	Constant float64
}

func (e *LinExpr) AddTerm(coef float64, v *Var) *LinExpr {
	e.Terms = append(e.Terms, Term{Coef: coef, Var: v})
	return e
}

func (e *LinExpr) AddConstant(c float64) *LinExpr {
	e.Constant += c
	return e
}

// Eval 按给定取值计算表达式
func (e *LinExpr) Eval(x []float64) float64 {
	s := e.Constant
	for _, t := range e.Terms {
		s += t.Coef * x[t.Var.index]
	}
	return s
}

// Constr 线性约束，表达式中的常数项在加入模型时已并入 RHS
type Constr struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

type Params struct {
	// TimeLimit 求解时间预算，0 表示不限制
	TimeLimit time.Duration
	Seed      int64
	NodeLimit int
}

type Model struct {
	env  *Env
	Name string

	ObjSense ObjSense

	vars    []*Var
	constrs []*Constr

	params   Params
	callback Callback

	attrs    Attributes
	solution []float64
}

func (m *Model) AddVar(name string, typ VarType, lb, ub, obj float64) *Var {
	v := &Var{
		model: m,
		index: len(m.vars),
		Name:  name,
		Type:  typ,
		LB:    lb,
		UB:    ub,
		Obj:   obj,
	}
	m.vars = append(m.vars, v)
	return v
}

// AddConstr 加入 expr sense rhs。同一变量多次出现时系数合并
func (m *Model) AddConstr(expr LinExpr, sense Sense, rhs float64, name string) (*Constr, error) {
	switch sense {
	case LessEqual, GreaterEqual, Equal:
	default:
		return nil, fmt.Errorf("mip: 未知约束类型 %q", sense)
	}
	merged := make(map[int]float64, len(expr.Terms))
	order := make([]*Var, 0, len(expr.Terms))
	for _, t := range expr.Terms {
		if t.Var == nil || t.Var.model != m {
			return nil, fmt.Errorf("mip: 约束 %s 引用了不属于模型 %s 的变量", name, m.Name)
		}
		if _, ok := merged[t.Var.index]; !ok {
			order = append(order, t.Var)
		}
		merged[t.Var.index] += t.Coef
	}
	c := &Constr{
		Name:  name,
		Sense: sense,
		RHS:   rhs - expr.Constant,
	}
	for _, v := range order {
		if coef := merged[v.index]; coef != 0 {
			c.Terms = append(c.Terms, Term{Coef: coef, Var: v})
		}
	}
	m.constrs = append(m.constrs, c)
	return c, nil
}

func (m *Model) Vars() []*Var       { return m.vars }
func (m *Model) Constrs() []*Constr { return m.constrs }
func (m *Model) NumVars() int       { return len(m.vars) }
func (m *Model) NumConstrs() int    { return len(m.constrs) }

// BinaryVars 按模型变量顺序返回全部 0/1 变量。解的索引都以这个顺序为准
func (m *Model) BinaryVars() []*Var {
	out := make([]*Var, 0, len(m.vars))
	for _, v := range m.vars {
		if v.IsBinary() {
			out = append(out, v)
		}
	}
	return out
}

func (m *Model) NumBinVars() int {
	n := 0
	for _, v := range m.vars {
		if v.IsBinary() {
			n++
		}
	}
	return n
}

// NumIntVars 整数变量个数（含 0/1 变量）
func (m *Model) NumIntVars() int {
	n := 0
	for _, v := range m.vars {
		if v.IsInteger() {
			n++
		}
	}
	return n
}

func (m *Model) SetParams(p Params) { m.params = p }
func (m *Model) Params() Params     { return m.params }

// SetCallback 注册求解回调，nil 表示移除
func (m *Model) SetCallback(cb Callback) { m.callback = cb }

// Optimize 阻塞直到求解结束（最优/不可行/时间上限）。
// 返回的 error 表示求解器故障，正常结束的状态在 Attributes().Status 里
func (m *Model) Optimize() error {
	if err := m.validate(); err != nil {
		return err
	}
	m.solution = nil
	m.attrs = Attributes{Status: StatusLoaded}

	started := time.Now()
	out, err := m.env.engine.Solve(m, m.callback)
	runtime := time.Since(started).Seconds()
	if err != nil {
		return fmt.Errorf("mip: 求解 %s 失败: %w", m.Name, err)
	}

	m.attrs = Attributes{
		Status:     out.Status,
		ObjVal:     Infinity,
		ObjBound:   out.ObjBound,
		MIPGap:     Infinity,
		Runtime:    runtime,
		NodeCount:  out.NodeCount,
		SolCount:   out.SolCount,
		MaxMemUsed: out.MaxMemUsed,
	}
	if out.X != nil {
		m.solution = out.X
		m.attrs.ObjVal = out.ObjVal
		m.attrs.MIPGap = relativeGap(out.ObjVal, out.ObjBound)
	}
	return nil
}

func (m *Model) Attributes() Attributes { return m.attrs }

// Value 返回最优（当前最好）解中变量的取值
func (m *Model) Value(v *Var) (float64, error) {
	if m.solution == nil {
		return 0, ErrNoSolution
	}
	if v.model != m {
		return 0, fmt.Errorf("mip: 变量 %s 不属于模型 %s", v.Name, m.Name)
	}
	return m.solution[v.index], nil
}

// Values 批量取值，顺序与 vars 一致
func (m *Model) Values(vars []*Var) ([]float64, error) {
	out := make([]float64, len(vars))
	for i, v := range vars {
		x, err := m.Value(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func (m *Model) validate() error {
	for _, v := range m.vars {
		if math.IsInf(v.LB, -1) || math.IsNaN(v.LB) || v.LB <= -Infinity {
			return fmt.Errorf("mip: 变量 %s 下界必须有限", v.Name)
		}
		if v.UB < v.LB {
			return fmt.Errorf("mip: 变量 %s 上界 %g 小于下界 %g", v.Name, v.UB, v.LB)
		}
	}
	return nil
}

func relativeGap(obj, bound float64) float64 {
	diff := math.Abs(obj - bound)
	if diff <= 1e-9 {
		return 0
	}
	if math.Abs(obj) <= 1e-9 || math.Abs(bound) >= Infinity {
		return Infinity
	}
	return diff / math.Abs(obj)
}

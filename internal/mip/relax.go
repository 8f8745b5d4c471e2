package mip

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	feasTol    = 1e-7
	simplexTol = 1e-10
)

var (
	errLPInfeasible = errors.New("lp: 松弛问题不可行")
	errLPUnbounded  = errors.New("lp: 松弛问题无界")
)

type lpRow struct {
	coefs map[int]float64
	sense Sense
	rhs   float64
}

// solveRelaxation 在给定上下界下求解连续松弛（最小化 cost·x）。
// 上下界相等的变量直接代入常数；其余变量平移到 x' = x - lb >= 0，
// 转成 gonum 的标准型 min c·x, Ax = b, x >= 0 后调用单纯形法
func solveRelaxation(m *Model, cost, lb, ub []float64) (x []float64, z float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, z, err = nil, 0, fmt.Errorf("lp: %v", r)
		}
	}()

	n := len(lb)
	x = make([]float64, n)
	copy(x, lb)
	free := make([]bool, n)
	for j := range lb {
		free[j] = ub[j]-lb[j] > feasTol
	}

	rows := make([]lpRow, 0, len(m.constrs)+n)
	used := make([]bool, n)
	for _, c := range m.constrs {
		r := lpRow{coefs: make(map[int]float64, len(c.Terms)), sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Terms {
			j := t.Var.index
			r.rhs -= t.Coef * lb[j]
			if free[j] {
				r.coefs[j] += t.Coef
			}
		}
		if len(r.coefs) == 0 {
			if !satisfied(0, r.sense, r.rhs) {
				return nil, 0, errLPInfeasible
			}
			continue
		}
		for j := range r.coefs {
			used[j] = true
		}
		// 等式拆成 <= 和 >= 两行，每行都有自己的松弛列，A 总是行满秩（重复的等式也不会奇异）
		if r.sense == Equal {
			rows = append(rows,
				lpRow{coefs: r.coefs, sense: LessEqual, rhs: r.rhs},
				lpRow{coefs: r.coefs, sense: GreaterEqual, rhs: r.rhs})
			continue
		}
		rows = append(rows, r)
	}
	for j := 0; j < n; j++ {
		if free[j] && !math.IsInf(ub[j], 1) {
			rows = append(rows, lpRow{coefs: map[int]float64{j: 1}, sense: LessEqual, rhs: ub[j] - lb[j]})
			used[j] = true
		}
	}

	// 不出现在任何行里的变量：成本非负就停在下界，否则无界
	cols := make([]int, n)
	ncols := 0
	for j := 0; j < n; j++ {
		cols[j] = -1
		if !free[j] {
			continue
		}
		if !used[j] {
			if cost[j] < 0 {
				return nil, 0, errLPUnbounded
			}
			continue
		}
		cols[j] = ncols
		ncols++
	}
	if len(rows) == 0 {
		return x, dot(cost, x), nil
	}

	width := ncols + len(rows)

	c := make([]float64, width)
	for j := 0; j < n; j++ {
		if cols[j] >= 0 {
			c[cols[j]] = cost[j]
		}
	}
	A := mat.NewDense(len(rows), width, nil)
	b := make([]float64, len(rows))
	slack := ncols
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for j, coef := range r.coefs {
			A.Set(i, cols[j], sign*coef)
		}
		if r.sense == GreaterEqual {
			A.Set(i, slack, -sign)
		} else {
			A.Set(i, slack, sign)
		}
		slack++
		b[i] = sign * r.rhs
	}

	_, xs, err := lp.Simplex(c, A, b, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, errLPInfeasible
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, errLPUnbounded
		}
		return nil, 0, fmt.Errorf("lp: %w", err)
	}
	for j := 0; j < n; j++ {
		if cols[j] >= 0 {
			x[j] = lb[j] + xs[cols[j]]
		}
	}
	return x, dot(cost, x), nil
}

func satisfied(lhs float64, sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return lhs <= rhs+feasTol
	case GreaterEqual:
		return lhs >= rhs-feasTol
	default:
		return math.Abs(lhs-rhs) <= feasTol
	}
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

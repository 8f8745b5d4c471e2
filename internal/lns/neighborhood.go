package lns

import (
	"fmt"

	"mip-lab/internal/mip"
)

// ConstraintName 邻域约束在模型中的名字
const ConstraintName = "LNS"

// ApplyNeighborhood 按 ratio 抽取一部分 0/1 变量，加一条约束把它们固定到参考解的取值，
// 其余变量保持自由。binVars 必须是加载时确定的 0/1 变量顺序。
// 返回被固定的下标；一个都没抽中时不加约束
func ApplyNeighborhood(m *mip.Model, binVars []*mip.Var, oneIndices []int, ratio float64, seed int64) ([]int, error) {
	n := len(binVars)
	target, err := targetVector(n, oneIndices)
	if err != nil {
		return nil, err
	}
	fixed, err := Sample(n, ratio, seed)
	if err != nil {
		return nil, err
	}
	if len(fixed) == 0 {
		return fixed, nil
	}

	expr := NeighborhoodExpr(binVars, target, fixed)
	if _, err := m.AddConstr(expr, mip.Equal, 0, ConstraintName); err != nil {
		return nil, fmt.Errorf("添加 LNS 约束失败: %w", err)
	}
	return fixed, nil
}

// NeighborhoodExpr sum_i var_i*(1-t_i) + (1-var_i)*t_i。
// 每一项非负，且只有 var_i == t_i 时为 0，所以整体 == 0 等价于逐个固定
func NeighborhoodExpr(binVars []*mip.Var, target []float64, fixed []int) mip.LinExpr {
	var expr mip.LinExpr
	for _, i := range fixed {
		v := binVars[i]
		if target[i] == 0 {
			expr.AddTerm(1, v)
		} else {
			expr.AddConstant(1).AddTerm(-1, v)
		}
	}
	return expr
}

// targetVector 参考解展开成长度为 n 的 0/1 向量
func targetVector(n int, oneIndices []int) ([]float64, error) {
	target := make([]float64, n)
	for _, idx := range oneIndices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: 参考解下标 %d 超出 0/1 变量个数 %d", ErrInvalidArgument, idx, n)
		}
		target[idx] = 1
	}
	return target, nil
}

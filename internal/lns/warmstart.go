package lns

import "mip-lab/internal/mip"

// ApplyWarmStart 先把所有 0/1 变量的初始值提示清成 0，再把参考解中的下标设为 1。
// 必须整体重置：之前的配置可能残留提示
func ApplyWarmStart(binVars []*mip.Var, oneIndices []int) error {
	if _, err := targetVector(len(binVars), oneIndices); err != nil {
		return err
	}
	for _, v := range binVars {
		v.SetStart(0)
	}
	for _, idx := range oneIndices {
		binVars[idx].SetStart(1)
	}
	return nil
}

package mip

// Phase 搜索阶段
type Phase int

const (
	PhaseNoRel   Phase = 0
	PhaseSearch  Phase = 1
	PhaseImprove Phase = 2
)

// ProgressInfo 回调期间可读的求解进度，只在回调调用期间有效
type ProgressInfo interface {
	// SolCount 目前找到的可行解个数
	SolCount() int
	Phase() Phase
	// NodeRel 当前节点松弛解中 vars 的取值
	NodeRel(vars []*Var) ([]float64, error)
}

// Callback 求解器在搜索树每个新节点（松弛解可用时）同步调用。
// 实现不能阻塞，也不能把 panic 抛回求解器
type Callback interface {
	OnNodeExplored(info ProgressInfo)
}

// CallbackFunc 便于用函数直接注册回调
type CallbackFunc func(info ProgressInfo)

func (f CallbackFunc) OnNodeExplored(info ProgressInfo) { f(info) }

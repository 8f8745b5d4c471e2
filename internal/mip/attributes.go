package mip

// Status 求解结束状态，编号沿用常见 MIP 求解器的约定，便于和历史数据对比
type Status int

const (
	StatusLoaded     Status = 1
	StatusOptimal    Status = 2
	StatusInfeasible Status = 3
	StatusUnbounded  Status = 5
	StatusNodeLimit  Status = 8
	StatusTimeLimit  Status = 9
)

func (s Status) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNodeLimit:
		return "node_limit"
	case StatusTimeLimit:
		return "time_limit"
	default:
		return "unknown"
	}
}

// Attributes 求解结束后可读的属性
type Attributes struct {
	Status    Status
	ObjVal    float64
	ObjBound  float64
	MIPGap    float64
	Runtime   float64 // 秒
	NodeCount float64
	SolCount  int
	// MaxMemUsed 峰值堆内存（GB）
	MaxMemUsed float64
}

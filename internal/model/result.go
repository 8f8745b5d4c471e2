package model

import "time"

// SolverRunResult 作业结束时的求解器属性，与 Job 一对一，只写一次
type SolverRunResult struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	JobID uint `gorm:"not null;uniqueIndex" json:"job_id"`

	MIPGap     float64 `gorm:"column:mip_gap" json:"mip_gap"`
	Runtime    float64 `json:"runtime"`
	SolCount   int     `json:"sol_count"`
	NodeCount  float64 `json:"node_count"`
	Status     int     `gorm:"index" json:"status"`
	ObjVal     float64 `json:"obj_val"`
	MaxMemUsed float64 `json:"max_mem_used"` // GB
	NumVars    int     `json:"num_vars"`
	NumConstrs int     `json:"num_constrs"`
	NumBinVars int     `json:"num_bin_vars"`
	NumIntVars int     `json:"num_int_vars"`

	// 取值为 1 的 0/1 变量下标，逗号分隔；没有可行解时为空
	Solution string `gorm:"type:text" json:"solution"`

	// LNS 实际固定的变量个数
	NumFixed int `json:"num_fixed"`
	// 回调内部出错次数（不影响求解）
	CallbackErrors int `json:"callback_errors"`

	// 相对历史最好目标值的差距（primalgap 动作维护，nil 表示无法计算）
	PrimalGap *float64 `json:"primal_gap"`
}

// MetricSample 回调在一个搜索树节点上采到的指标
type MetricSample struct {
	ID    uint `gorm:"primarykey" json:"id"`
	JobID uint `gorm:"not null;index" json:"job_id"`

	NonZeroCount int   `json:"non_zero_count"`
	Phase        int   `json:"phase"`
	SolCnt       int   `gorm:"column:solcnt" json:"solcnt"`
	ElapsedMS    int64 `gorm:"column:elapsed_ms" json:"elapsed_ms"`
}

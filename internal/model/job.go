package model

import (
	"time"
)

// Job 一次实验求解。内存中创建，求解结束（无论成败）才落库拿到 ID
type Job struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	InstanceID string `gorm:"type:varchar(191);not null;index" json:"instance_id"`
	// 所属批次（可为 0，表示单独运行）
	BatchRunID uint `gorm:"index" json:"batch_run_id"`

	TimeLimitS int    `json:"time_limit_s"`
	GroupName  string `gorm:"type:varchar(100);not null;index" json:"group_name"`

	WarmStart   bool    `json:"warm_start"`
	EnableLNS   bool    `gorm:"column:enable_lns" json:"enable_lns"`
	FixingRatio float64 `json:"fixing_ratio"`
	Seed        int64   `json:"seed"`
}

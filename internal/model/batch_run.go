package model

import (
	"time"

	"gorm.io/gorm"
)

// BatchRun 每次批量实验的元数据（用于复现与结果隔离）
type BatchRun struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID  string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	Group string `gorm:"column:group_name;type:varchar(100);not null;index" json:"group"`

	TimeLimitS int    `json:"time_limit_s"`
	RatiosJSON string `gorm:"type:text" json:"ratios_json"`
	SeedsJSON  string `gorm:"type:text" json:"seeds_json"`

	Planned   int `json:"planned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	ResultPath string `gorm:"type:varchar(500)" json:"result_path"`
	ReportPath string `gorm:"type:varchar(500)" json:"report_path"`
}

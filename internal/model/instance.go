package model

import (
	"time"

	"gorm.io/gorm"
)

// Instance 优化问题实例，ID 是稳定的字符串（问题文件名去掉扩展名）
type Instance struct {
	ID        string         `gorm:"primaryKey;type:varchar(191)" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name string `gorm:"type:varchar(255);not null" json:"name"`

	// 是否被选入实验批次
	Selected bool `gorm:"default:false;index" json:"selected"`

	NumBinVars int `json:"num_bin_vars"`
	NumIntVars int `json:"num_int_vars"`

	// 历史作业中的最好目标值（bestobj 动作维护）
	BestKnownObjVal *float64 `json:"best_known_obj_val"`
}

package service

import "errors"

var (
	// ErrConfiguration 求解开始前发现的问题：实例不存在、问题文件缺失、作业参数不合法
	ErrConfiguration = errors.New("作业配置错误")
	// ErrSolver 求解器在配置或求解过程中报错
	ErrSolver = errors.New("求解器故障")
	// ErrEncoding 已保存的解文本无法解码
	ErrEncoding = errors.New("解编码错误")
)

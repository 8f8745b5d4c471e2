package service

import (
	"mip-lab/internal/config"
	"mip-lab/internal/db"
	"mip-lab/internal/mip"
)

// ServiceContext 进程级依赖：求解环境和数据库各一个，所有作业共用
type ServiceContext struct {
	Config      *config.Config
	Store       *db.Store
	Env         *mip.Env
	JobRunner   *JobRunner
	BatchRunner *BatchRunner
}

func NewServiceContext(cfg *config.Config, store *db.Store, env *mip.Env, opts ...JobRunnerOption) *ServiceContext {
	if cfg.Solver.NodeLimit > 0 {
		opts = append([]JobRunnerOption{WithNodeLimit(cfg.Solver.NodeLimit)}, opts...)
	}
	jobs := NewJobRunner(env, store, cfg.Solver.InstancesDir, cfg.Experiment.MetricBatchSize, opts...)
	return &ServiceContext{
		Config:      cfg,
		Store:       store,
		Env:         env,
		JobRunner:   jobs,
		BatchRunner: NewBatchRunner(jobs, store, cfg.Experiment),
	}
}

package mip

import (
	"github.com/rs/zerolog"
)

// Outcome 引擎一次求解的原始结果。X 为 nil 表示没有可行解
type Outcome struct {
	Status     Status
	X          []float64
	ObjVal     float64
	ObjBound   float64
	NodeCount  float64
	SolCount   int
	MaxMemUsed float64
}

// Engine 真正执行求解的后端
type Engine interface {
	Solve(m *Model, cb Callback) (*Outcome, error)
}

// Env 求解环境：批次开始时创建一次，显式传给每个作业
type Env struct {
	engine Engine
	logger zerolog.Logger
}

type EnvOption func(*Env)

func WithEngine(engine Engine) EnvOption {
	return func(e *Env) { e.engine = engine }
}

func WithLogger(logger zerolog.Logger) EnvOption {
	return func(e *Env) { e.logger = logger }
}

func NewEnv(opts ...EnvOption) *Env {
	env := &Env{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(env)
	}
	if env.engine == nil {
		env.engine = NewBranchAndBound(env.logger)
	}
	return env
}

func (e *Env) NewModel(name string) *Model {
	return &Model{
		env:      e,
		Name:     name,
		ObjSense: Minimize,
		attrs:    Attributes{Status: StatusLoaded},
	}
}

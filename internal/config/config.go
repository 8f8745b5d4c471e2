package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Solver     SolverConfig     `yaml:"solver"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// Driver: mysql/sqlite
	Driver string `yaml:"driver"`
	// DSN 不为空时直接使用，忽略下面的分项
	DSN string `yaml:"dsn"`
	// Path sqlite 文件路径
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`

	MaxOpenConns int `yaml:"max_open_conns"`
}

type SolverConfig struct {
	// InstancesDir 问题文件目录（<instance_id>.yaml），可用 MPS_FILES_DIR / INSTANCES_DIR 覆盖
	InstancesDir string `yaml:"instances_dir"`
	NodeLimit    int    `yaml:"node_limit"`
}

type ExperimentConfig struct {
	TimeLimitS   int       `yaml:"time_limit_s"`
	FixingRatios []float64 `yaml:"fixing_ratios"`
	Seeds        []int64   `yaml:"seeds"`
	// SelectedFixingRatio "selected" 组使用的固定比例；未配置时为 nil，0 是合法取值
	SelectedFixingRatio *float64 `yaml:"selected_fixing_ratio"`
	// MetricBatchSize 回调指标批量写入的大小
	MetricBatchSize int    `yaml:"metric_batch_size"`
	OutputDir       string `yaml:"output_dir"`

	Selection SelectionConfig `yaml:"selection"`
}

// SelectionConfig 实例筛选：取 base_group 最近一次作业，min_gap < mip_gap < max_gap 且有解
type SelectionConfig struct {
	BaseGroup string  `yaml:"base_group"`
	MinGap    float64 `yaml:"min_gap"`
	MaxGap    float64 `yaml:"max_gap"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func LoadConfig(path string) (*Config, error) {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.applyEnv()
	config.ApplyDefaults()
	return &config, nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv("MPS_FILES_DIR"); dir != "" {
		c.Solver.InstancesDir = dir
	}
	if dir := os.Getenv("INSTANCES_DIR"); dir != "" {
		c.Solver.InstancesDir = dir
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// ApplyDefaults 填充未配置的字段
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/db.sqlite"
	}
	if c.Solver.InstancesDir == "" {
		c.Solver.InstancesDir = "data/instances"
	}
	e := &c.Experiment
	if e.TimeLimitS <= 0 {
		e.TimeLimitS = 10
	}
	if len(e.FixingRatios) == 0 {
		e.FixingRatios = []float64{0.2, 0.5, 0.8}
	}
	if len(e.Seeds) == 0 {
		e.Seeds = []int64{0, 1, 2}
	}
	if e.SelectedFixingRatio == nil {
		ratio := 0.2
		e.SelectedFixingRatio = &ratio
	}
	if e.MetricBatchSize <= 0 {
		e.MetricBatchSize = 1000
	}
	if e.OutputDir == "" {
		e.OutputDir = "outputs"
	}
	if e.Selection.BaseGroup == "" {
		e.Selection.BaseGroup = "grb_only"
	}
	if e.Selection.MinGap == 0 && e.Selection.MaxGap == 0 {
		e.Selection.MinGap, e.Selection.MaxGap = 0.05, 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

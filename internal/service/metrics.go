package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "miplab"

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "jobs_total",
		Help:      "按实验组和结果统计的作业数",
	}, []string{"group", "outcome"})

	solveSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "solve_seconds",
		Help:      "单个作业 Optimize 调用耗时",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"group"})

	callbackFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "callback_faults_total",
		Help:      "回调内部捕获的错误数",
	})

	metricSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "metric_samples_persisted_total",
		Help:      "已写入数据库的回调指标条数",
	})
)

const (
	outcomePersisted = "persisted"
	outcomeFailed    = "failed"
)

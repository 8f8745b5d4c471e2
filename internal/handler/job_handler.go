package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mip-lab/internal/db"
	"mip-lab/internal/service"

	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	store *db.Store
}

func NewJobHandler(store *db.Store) *JobHandler {
	return &JobHandler{store: store}
}

// ListJobs 列出作业及结果，可按 group/instance/batch 过滤
func (h *JobHandler) ListJobs(c *gin.Context) {
	f := db.JobFilter{
		GroupName:  c.Query("group"),
		InstanceID: c.Query("instance"),
	}
	if v := c.Query("batch"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.BatchRunID = uint(id)
		}
	}
	if v := c.Query("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			f.Limit = l
		}
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
	})
}

// GetJob 获取单个作业及其求解结果
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	jr, err := h.store.GetJob(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "作业不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":    jr.Job,
		"result": jr.Result,
	})
}

// GetJobMetrics 作业的回调指标与概要。points>0 时对曲线降采样
func (h *JobHandler) GetJobMetrics(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	samples, err := h.store.ListMetrics(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	points, _ := strconv.Atoi(c.Query("points"))

	c.JSON(http.StatusOK, gin.H{
		"summary": service.SummarizeMetrics(id, samples),
		"metrics": service.NonZeroCurve(samples, points),
	})
}

// ExportJobMetrics 以 CSV 下载回调指标
func (h *JobHandler) ExportJobMetrics(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if _, err := h.store.GetJob(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, db.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=job_%d_metrics.csv", id))
	if _, err := service.ExportMetricsCSV(c.Request.Context(), h.store, id, c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func jobID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "作业 ID 不合法"})
		return 0, false
	}
	return uint(id), true
}

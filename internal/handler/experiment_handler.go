package handler

import (
	"net/http"

	"mip-lab/internal/db"
	"mip-lab/internal/service"

	"github.com/gin-gonic/gin"
)

type ExperimentHandler struct {
	runner *service.BatchRunner
	store  *db.Store
}

func NewExperimentHandler(runner *service.BatchRunner, store *db.Store) *ExperimentHandler {
	return &ExperimentHandler{runner: runner, store: store}
}

// GetExperimentStats 全部作业按实验组统计，并与 grb_only 基线比较
func (h *ExperimentHandler) GetExperimentStats(c *gin.Context) {
	stats, tests, err := service.AllGroupStats(c.Request.Context(), h.store)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
		"tests": tests,
	})
}

// ListGroups 出现过的实验组
func (h *ExperimentHandler) ListGroups(c *gin.Context) {
	groups, err := h.store.ListGroups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
	})
}

// RunExperiment 同步跑完一整组作业后返回批次结果
func (h *ExperimentHandler) RunExperiment(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch runner not initialized"})
		return
	}

	var req service.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":      result,
		"result_path": result.ResultPath,
		"report_path": result.ReportPath,
	})
}

package handler

import (
	"errors"
	"net/http"

	"mip-lab/internal/config"
	"mip-lab/internal/db"
	"mip-lab/internal/service"

	"github.com/gin-gonic/gin"
)

type InstanceHandler struct {
	store     *db.Store
	selection config.SelectionConfig
}

func NewInstanceHandler(store *db.Store, selection config.SelectionConfig) *InstanceHandler {
	return &InstanceHandler{store: store, selection: selection}
}

// ListInstances 列出实例，selected=true 时只返回已选中的
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	instances, err := h.store.ListInstances(c.Request.Context(), c.Query("selected") == "true")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instances": instances,
	})
}

// GetInstance 获取单个实例
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	inst, err := h.store.GetInstance(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "实例不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instance": inst,
	})
}

// SelectInstances 按基线组结果重新筛选实例
func (h *InstanceHandler) SelectInstances(c *gin.Context) {
	ids, err := service.SelectInstances(c.Request.Context(), h.store, h.selection)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"selected": ids,
	})
}

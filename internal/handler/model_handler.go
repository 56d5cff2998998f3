package handler

import (
	"errors"
	"net/http"

	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/scheduler"
	"ghar-khoj-ml-go/internal/service"
	"ghar-khoj-ml-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ModelHandler 结构体定义了模型管理相关的处理器。
type ModelHandler struct {
	trainingService service.TrainingService
	sched           *scheduler.Scheduler
}

// NewModelHandler 创建一个新的 ModelHandler 实例。
func NewModelHandler(trainingService service.TrainingService, sched *scheduler.Scheduler) *ModelHandler {
	return &ModelHandler{
		trainingService: trainingService,
		sched:           sched,
	}
}

// Retrain 是手动触发一轮模型重训的 Gin 处理函数。
func (h *ModelHandler) Retrain(c *gin.Context) {
	log.Info("[ModelHandler] 收到手动重训请求")

	stats, err := h.trainingService.TrainModels(c.Request.Context())
	if err != nil {
		if errors.Is(err, ml.ErrInsufficientData) {
			c.JSON(http.StatusConflict, gin.H{"error": "房源语料不足，无法训练"})
			return
		}
		log.Errorf("[ModelHandler] 手动重训失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "模型训练失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": stats, "message": "success"})
}

// Status 返回模型与调度器的当前状态。
func (h *ModelHandler) Status(c *gin.Context) {
	resp := gin.H{
		"model": h.trainingService.Status(),
	}
	if h.sched != nil {
		resp["scheduler"] = h.sched.Status()
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": resp, "message": "success"})
}

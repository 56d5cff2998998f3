// Package handler 存放 Gin 的 HTTP 处理器。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/service"
	"ghar-khoj-ml-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RecommendationHandler 结构体定义了推荐相关的处理器。
type RecommendationHandler struct {
	recommendationService service.RecommendationService
}

// NewRecommendationHandler 创建一个新的 RecommendationHandler 实例。
func NewRecommendationHandler(recommendationService service.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		recommendationService: recommendationService,
	}
}

// List 是读取用户推荐列表的 Gin 处理函数。
func (h *RecommendationHandler) List(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	limitStr := c.DefaultQuery("limit", "0")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		limit = 0
	}
	recType := c.Query("type")

	recs, err := h.recommendationService.GetRecommendationsForUser(c.Request.Context(), userID, limit, recType)
	if err != nil {
		log.Errorf("[RecommendationHandler] 读取推荐列表失败, userID: %d, error: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取推荐失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": recs, "message": "success"})
}

// Generate 是按需为单个用户触发推荐生成的 Gin 处理函数。
func (h *RecommendationHandler) Generate(c *gin.Context) {
	var req struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	result, err := h.recommendationService.GenerateRecommendations(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, ml.ErrModelNotTrained) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "模型尚未训练完成，请稍后再试"})
			return
		}
		log.Errorf("[RecommendationHandler] 推荐生成失败, userID: %d, error: %v", req.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "推荐生成失败"})
		return
	}

	log.Infof("[RecommendationHandler] 推荐生成成功, userID: %d, 类型: %s, %d 条", req.UserID, result.RecType, result.Generated)
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": result, "message": "success"})
}

// Click 记录一次推荐点击。
func (h *RecommendationHandler) Click(c *gin.Context) {
	h.track(c, h.recommendationService.TrackClick)
}

// Dismiss 把推荐标记为已忽略。
func (h *RecommendationHandler) Dismiss(c *gin.Context) {
	h.track(c, h.recommendationService.TrackDismiss)
}

// track 解析路径中的推荐 ID 并调用对应的反馈记录方法。
func (h *RecommendationHandler) track(c *gin.Context, fn func(ctx context.Context, recID uint) error) {
	recIDStr := c.Param("id")
	recID, err := strconv.ParseUint(recIDStr, 10, 64)
	if err != nil || recID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的推荐 ID"})
		return
	}

	if err := fn(c.Request.Context(), uint(recID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "推荐不存在"})
			return
		}
		log.Errorf("[RecommendationHandler] 记录推荐反馈失败, recID: %d, error: %v", recID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "记录反馈失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "success"})
}

func parseUserID(c *gin.Context) (uint, bool) {
	userIDStr := c.Query("userId")
	userID, err := strconv.ParseUint(userIDStr, 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 userId 参数"})
		return 0, false
	}
	return uint(userID), true
}

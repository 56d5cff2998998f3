package handler

import (
	"fmt"
	"net/http"
	"time"

	"ghar-khoj-ml-go/pkg/kafka"
	"ghar-khoj-ml-go/pkg/log"
	"ghar-khoj-ml-go/pkg/tasks"

	"github.com/gin-gonic/gin"
)

// EventHandler 接收 Web 层上报的用户交互事件并投递到 Kafka。
type EventHandler struct{}

// NewEventHandler 创建一个新的 EventHandler 实例。
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// Report 是上报交互事件的 Gin 处理函数。
// 事件先进 Kafka 再异步落库，接口只确认投递成功。
func (h *EventHandler) Report(c *gin.Context) {
	var event tasks.InteractionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的事件格式"})
		return
	}

	if event.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少用户 ID"})
		return
	}
	switch event.EventType {
	case tasks.EventTypeSearch:
	case tasks.EventTypeView, tasks.EventTypeFavourite:
		if event.ListingID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少房源 ID"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "未知的事件类型"})
		return
	}

	if event.EventID == "" {
		event.EventID = fmt.Sprintf("%d-%s-%d", event.UserID, event.EventType, time.Now().UnixNano())
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := kafka.ProduceInteractionEvent(event); err != nil {
		log.Errorf("[EventHandler] 投递交互事件失败, EventID: %s, error: %v", event.EventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "事件投递失败"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"code": 202, "data": gin.H{"eventId": event.EventID}, "message": "accepted"})
}

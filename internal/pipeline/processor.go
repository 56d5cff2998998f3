// Package pipeline 实现 Kafka 交互事件的落库处理。
package pipeline

import (
	"context"
	"fmt"

	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/pkg/log"
	"ghar-khoj-ml-go/pkg/tasks"
)

// Processor 把交互事件按类型写入对应的历史表。
// 实现 kafka.EventProcessor 接口。
type Processor struct {
	interactionRepo repository.InteractionRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(interactionRepo repository.InteractionRepository) *Processor {
	return &Processor{interactionRepo: interactionRepo}
}

// Process 处理单条交互事件。未知事件类型直接丢弃并记日志，不触发 Kafka 重试。
func (p *Processor) Process(ctx context.Context, event tasks.InteractionEvent) error {
	if event.UserID == 0 {
		log.Warnf("[Pipeline] 丢弃缺少用户 ID 的事件: EventID=%s", event.EventID)
		return nil
	}

	switch event.EventType {
	case tasks.EventTypeSearch:
		return p.processSearch(ctx, event)
	case tasks.EventTypeView:
		return p.processView(ctx, event)
	case tasks.EventTypeFavourite:
		return p.processFavourite(ctx, event)
	default:
		log.Warnf("[Pipeline] 丢弃未知类型的事件: EventID=%s, Type=%s", event.EventID, event.EventType)
		return nil
	}
}

func (p *Processor) processSearch(ctx context.Context, event tasks.InteractionEvent) error {
	search := &model.SearchHistory{
		UserID:       event.UserID,
		SearchQuery:  event.SearchQuery,
		City:         event.City,
		PropertyType: event.PropertyType,
		MinRent:      event.MinRent,
		MaxRent:      event.MaxRent,
		Bedrooms:     event.Bedrooms,
		Amenities:    model.StringList(event.Amenities),
		ResultsCount: event.ResultsCount,
	}
	if !event.OccurredAt.IsZero() {
		search.CreatedAt = event.OccurredAt
	}
	if err := p.interactionRepo.CreateSearch(ctx, search); err != nil {
		return fmt.Errorf("写入搜索事件失败: %w", err)
	}
	return nil
}

func (p *Processor) processView(ctx context.Context, event tasks.InteractionEvent) error {
	if event.ListingID == 0 {
		log.Warnf("[Pipeline] 丢弃缺少房源 ID 的浏览事件: EventID=%s", event.EventID)
		return nil
	}
	view := &model.ListingView{
		UserID:              event.UserID,
		ListingID:           event.ListingID,
		ViewDurationSeconds: event.ViewDurationSeconds,
		DeviceType:          event.DeviceType,
	}
	if !event.OccurredAt.IsZero() {
		view.CreatedAt = event.OccurredAt
	}
	if err := p.interactionRepo.CreateView(ctx, view); err != nil {
		return fmt.Errorf("写入浏览事件失败: %w", err)
	}
	return nil
}

func (p *Processor) processFavourite(ctx context.Context, event tasks.InteractionEvent) error {
	if event.ListingID == 0 {
		log.Warnf("[Pipeline] 丢弃缺少房源 ID 的收藏事件: EventID=%s", event.EventID)
		return nil
	}
	fav := &model.Favourite{
		UserID:    event.UserID,
		ListingID: event.ListingID,
	}
	if !event.OccurredAt.IsZero() {
		fav.CreatedAt = event.OccurredAt
	}
	if err := p.interactionRepo.CreateFavourite(ctx, fav); err != nil {
		return fmt.Errorf("写入收藏事件失败: %w", err)
	}
	return nil
}

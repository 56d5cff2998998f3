// Package tasks defines the structure for events that are sent to Kafka.
package tasks

import "time"

// 交互事件类型。
const (
	EventTypeSearch    = "search"
	EventTypeView      = "view"
	EventTypeFavourite = "favourite"
)

// InteractionEvent represents a single user interaction reported by the web layer.
// EventID 由生产方生成，消费侧用它做失败重试计数。
type InteractionEvent struct {
	EventID   string `json:"event_id"`
	UserID    uint   `json:"user_id"`
	EventType string `json:"event_type"`
	ListingID uint   `json:"listing_id,omitempty"`

	// 搜索事件携带的过滤条件
	SearchQuery  string   `json:"search_query,omitempty"`
	City         string   `json:"city,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	MinRent      *float64 `json:"min_rent,omitempty"`
	MaxRent      *float64 `json:"max_rent,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	ResultsCount int      `json:"results_count,omitempty"`

	// 浏览事件携带的上下文
	ViewDurationSeconds int    `json:"view_duration_seconds,omitempty"`
	DeviceType          string `json:"device_type,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

package model

import "time"

// SearchHistory 对应于数据库中的 'search_history' 表。
// 搜索事件由 Web 层经 Kafka 上报，过滤条件展开为独立列，便于偏好聚合查询。
type SearchHistory struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"userId"`
	SearchQuery  string     `gorm:"type:varchar(255)" json:"searchQuery"`
	City         string     `gorm:"type:varchar(100)" json:"city"`
	PropertyType string     `gorm:"type:varchar(50);column:property_type" json:"propertyType"`
	MinRent      *float64   `gorm:"column:min_rent" json:"minRent"`
	MaxRent      *float64   `gorm:"column:max_rent" json:"maxRent"`
	Bedrooms     *int       `gorm:"default:null" json:"bedrooms"`
	Amenities    StringList `gorm:"type:json" json:"amenities"`
	ResultsCount int        `gorm:"default:0" json:"resultsCount"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (SearchHistory) TableName() string {
	return "search_history"
}

// ListingView 对应于数据库中的 'listing_views' 表，记录用户打开房源详情的事件。
type ListingView struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              uint      `gorm:"not null;index" json:"userId"`
	ListingID           uint      `gorm:"not null;index" json:"listingId"`
	ViewDurationSeconds int       `gorm:"default:0;column:view_duration_seconds" json:"viewDurationSeconds"`
	InteractionType     string    `gorm:"type:varchar(20);default:'view'" json:"interactionType"`
	DeviceType          string    `gorm:"type:varchar(20);default:'web'" json:"deviceType"`
	CreatedAt           time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ListingView) TableName() string {
	return "listing_views"
}

// Favourite 对应于数据库中的 'favourites' 表。
type Favourite struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_listing" json:"userId"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_user_listing" json:"listingId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Favourite) TableName() string {
	return "favourites"
}

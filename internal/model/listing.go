package model

import "time"

// Listing 对应于数据库中的 'listings' 表。
// 该表由房源管理模块维护，推荐核心只在训练时读取快照，从不写入。
type Listing struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	LandlordID  uint       `gorm:"not null;index" json:"landlordId"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	City        string     `gorm:"type:varchar(100);index" json:"city"`
	Type        string     `gorm:"type:varchar(50)" json:"type"`
	Furnished   string     `gorm:"type:varchar(50)" json:"furnished"`
	CollegeName string     `gorm:"type:varchar(255);column:college_name" json:"collegeName"`
	RentAmount  float64    `gorm:"not null;column:rent_amount" json:"rentAmount"`
	Bedrooms    int        `gorm:"default:0" json:"bedrooms"`
	Bathrooms   int        `gorm:"default:0" json:"bathrooms"`
	Latitude    *float64   `gorm:"default:null" json:"latitude"`
	Longitude   *float64   `gorm:"default:null" json:"longitude"`
	Amenities   StringList `gorm:"type:json" json:"amenities"`
	Status      string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Listing) TableName() string {
	return "listings"
}

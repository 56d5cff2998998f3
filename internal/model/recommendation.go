package model

import "time"

// 推荐类型标签。
const (
	RecTypeContentBased = "content_based"
	RecTypeColdStartGeo = "cold_start_geo"
	RecTypeTrending     = "trending"
)

// Recommendation 对应于数据库中的 'ml_recommendations' 表。
// (user_id, listing_id, rec_type) 上有唯一索引：重复生成时覆盖更新而不是累积新行。
type Recommendation struct {
	ID               uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint       `gorm:"not null;uniqueIndex:idx_user_listing_type" json:"userId"`
	ListingID        uint       `gorm:"not null;uniqueIndex:idx_user_listing_type" json:"listingId"`
	RecType          string     `gorm:"type:varchar(30);not null;uniqueIndex:idx_user_listing_type;column:rec_type" json:"recType"`
	ConfidenceScore  float64    `gorm:"column:confidence_score" json:"confidenceScore"`
	SimilarityScore  float64    `gorm:"column:similarity_score" json:"similarityScore"`
	MatchingFeatures FeatureMap `gorm:"type:json;column:matching_features" json:"matchingFeatures"`
	Explanation      string     `gorm:"type:varchar(500)" json:"explanation"`
	Clicked          bool       `gorm:"not null;default:false" json:"clicked"`
	Dismissed        bool       `gorm:"not null;default:false" json:"dismissed"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime;index" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Recommendation) TableName() string {
	return "ml_recommendations"
}

// UserPreferenceProfile 对应于数据库中的 'user_preference_profiles' 表。
// 档案只在重建时整体覆盖，从不删除。
type UserPreferenceProfile struct {
	UserID                 uint        `gorm:"primaryKey;column:user_id" json:"userId"`
	PreferredCities        StringList  `gorm:"type:json;column:preferred_cities" json:"preferredCities"`
	PreferredPropertyTypes StringList  `gorm:"type:json;column:preferred_property_types" json:"preferredPropertyTypes"`
	PreferredAmenities     StringList  `gorm:"type:json;column:preferred_amenities" json:"preferredAmenities"`
	PreferredMinRent       *float64    `gorm:"column:preferred_min_rent" json:"preferredMinRent"`
	PreferredMaxRent       *float64    `gorm:"column:preferred_max_rent" json:"preferredMaxRent"`
	PreferredBedrooms      *int        `gorm:"column:preferred_bedrooms" json:"preferredBedrooms"`
	TFIDFVector            FloatVector `gorm:"type:json;column:tfidf_vector" json:"tfidfVector"`
	ModelVersion           string      `gorm:"type:varchar(50);column:model_version" json:"modelVersion"`
	TotalSearches          int         `gorm:"column:total_searches" json:"totalSearches"`
	TotalViews             int         `gorm:"column:total_views" json:"totalViews"`
	UpdatedAt              time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UserPreferenceProfile) TableName() string {
	return "user_preference_profiles"
}

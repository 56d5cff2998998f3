package model

import "time"

// PropertyFeatureVector 对应于数据库中的 'property_feature_vectors' 表。
// 每次全量训练后按房源覆盖写入；ModelVersion 标记向量所属的词表版本，
// 不同版本的向量维度不可比较，读取方必须校验版本一致。
type PropertyFeatureVector struct {
	ListingID           uint        `gorm:"primaryKey;column:listing_id" json:"listingId"`
	TFIDFVector         FloatVector `gorm:"type:json;column:tfidf_vector" json:"tfidfVector"`
	ModelVersion        string      `gorm:"type:varchar(50);not null;index;column:model_version" json:"modelVersion"`
	NormalizedRent      float64     `gorm:"column:normalized_rent" json:"normalizedRent"`
	NormalizedBedrooms  float64     `gorm:"column:normalized_bedrooms" json:"normalizedBedrooms"`
	NormalizedBathrooms float64     `gorm:"column:normalized_bathrooms" json:"normalizedBathrooms"`
	Latitude            *float64    `gorm:"default:null" json:"latitude"`
	Longitude           *float64    `gorm:"default:null" json:"longitude"`
	GeoClusterID        *int        `gorm:"default:null;column:geo_cluster_id" json:"geoClusterId"`
	LastComputed        time.Time   `gorm:"autoUpdateTime;column:last_computed" json:"lastComputed"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PropertyFeatureVector) TableName() string {
	return "property_feature_vectors"
}

// GeoCluster 对应于数据库中的 'geo_clusters' 表，保存 K-Means 的质心与簇统计。
type GeoCluster struct {
	ClusterID         int       `gorm:"primaryKey;column:cluster_id" json:"clusterId"`
	CentroidLatitude  float64   `gorm:"column:centroid_latitude" json:"centroidLatitude"`
	CentroidLongitude float64   `gorm:"column:centroid_longitude" json:"centroidLongitude"`
	CentroidRent      float64   `gorm:"column:centroid_rent" json:"centroidRent"`
	PropertyCount     int       `gorm:"column:property_count" json:"propertyCount"`
	AvgRent           float64   `gorm:"column:avg_rent" json:"avgRent"`
	MinRent           float64   `gorm:"column:min_rent" json:"minRent"`
	MaxRent           float64   `gorm:"column:max_rent" json:"maxRent"`
	PrimaryCity       string    `gorm:"type:varchar(100);column:primary_city" json:"primaryCity"`
	PropertyIDs       UintList  `gorm:"type:json;column:property_ids" json:"propertyIds"`
	ModelVersion      string    `gorm:"type:varchar(50);not null;column:model_version" json:"modelVersion"`
	LastComputed      time.Time `gorm:"autoUpdateTime;column:last_computed" json:"lastComputed"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (GeoCluster) TableName() string {
	return "geo_clusters"
}

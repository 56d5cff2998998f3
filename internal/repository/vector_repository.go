package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ghar-khoj-ml-go/internal/model"
)

// VectorRepository 定义了对特征向量和聚类结果表的数据操作接口。
// 每轮训练整体覆盖写入，旧版本的残留行按 model_version 清理。
type VectorRepository interface {
	UpsertPropertyVectors(ctx context.Context, vectors []*model.PropertyFeatureVector) error
	DeleteVectorsNotVersion(ctx context.Context, version string) error
	UpsertClusters(ctx context.Context, clusters []*model.GeoCluster) error
	DeleteClustersNotVersion(ctx context.Context, version string) error
	FindVectorsByVersion(ctx context.Context, version string) ([]*model.PropertyFeatureVector, error)
}

type vectorRepository struct {
	db *gorm.DB
}

// NewVectorRepository 创建一个新的 VectorRepository 实例。
func NewVectorRepository(db *gorm.DB) VectorRepository {
	return &vectorRepository{db: db}
}

// UpsertPropertyVectors 批量写入房源特征向量，主键冲突时覆盖更新。
func (r *vectorRepository) UpsertPropertyVectors(ctx context.Context, vectors []*model.PropertyFeatureVector) error {
	if len(vectors) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(vectors, 100).Error
}

// DeleteVectorsNotVersion 删除不属于当前模型版本的向量行（对应已下架的房源）。
func (r *vectorRepository) DeleteVectorsNotVersion(ctx context.Context, version string) error {
	return r.db.WithContext(ctx).
		Where("model_version <> ?", version).
		Delete(&model.PropertyFeatureVector{}).Error
}

// UpsertClusters 批量写入聚类结果，簇 ID 冲突时覆盖更新。
func (r *vectorRepository) UpsertClusters(ctx context.Context, clusters []*model.GeoCluster) error {
	if len(clusters) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cluster_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(clusters, 100).Error
}

// DeleteClustersNotVersion 删除旧模型版本遗留的簇（自适应缩簇后会出现）。
func (r *vectorRepository) DeleteClustersNotVersion(ctx context.Context, version string) error {
	return r.db.WithContext(ctx).
		Where("model_version <> ?", version).
		Delete(&model.GeoCluster{}).Error
}

// FindVectorsByVersion 读取指定模型版本的全部房源向量。
func (r *vectorRepository) FindVectorsByVersion(ctx context.Context, version string) ([]*model.PropertyFeatureVector, error) {
	var vectors []*model.PropertyFeatureVector
	err := r.db.WithContext(ctx).
		Where("model_version = ?", version).
		Find(&vectors).Error
	return vectors, err
}

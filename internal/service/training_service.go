package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/ml/feature"
	"ghar-khoj-ml-go/internal/ml/kmeans"
	"ghar-khoj-ml-go/internal/ml/tfidf"
	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/pkg/log"
)

// 语料少于该值时放弃整轮训练，保留上一个快照继续服务。
const minTrainingCorpusSize = 3

// 持久化向量时附带的标量特征缩放分母。
const (
	rentScaleDivisor      = 100000
	roomCountScaleDivisor = 10
)

// ArtifactStore 抽象模型制品的对象存储，便于测试替换。
type ArtifactStore interface {
	Save(ctx context.Context, version string, data []byte) error
	LoadLatest(ctx context.Context) ([]byte, error)
}

// TrainStats 是一轮训练的统计结果。
type TrainStats struct {
	Version         string `json:"version"`
	TotalProperties int    `json:"totalProperties"`
	VocabularySize  int    `json:"vocabularySize"`
	TFIDFVectors    int    `json:"tfidfVectors"`
	Clusters        int    `json:"clusters"`
	KMeansEnabled   bool   `json:"kmeansEnabled"`
}

// ModelStatus 是对外暴露的模型状态。
type ModelStatus struct {
	Trained        bool       `json:"trained"`
	Version        string     `json:"version,omitempty"`
	LastTrainedAt  *time.Time `json:"lastTrainedAt,omitempty"`
	PropertyCount  int        `json:"propertyCount"`
	VocabularySize int        `json:"vocabularySize"`
	ClusterCount   int        `json:"clusterCount"`
}

// TrainingService 接口定义了模型训练与快照发布操作。
type TrainingService interface {
	TrainModels(ctx context.Context) (*TrainStats, error)
	Current() *Snapshot
	LoadLatestArtifact(ctx context.Context) error
	Status() ModelStatus
}

type trainingService struct {
	listingRepo repository.ListingRepository
	vectorRepo  repository.VectorRepository
	artifacts   ArtifactStore
	mlCfg       config.MLConfig

	trainMu  sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

// NewTrainingService 创建一个新的 TrainingService 实例。artifacts 可以为 nil（不导出制品）。
func NewTrainingService(
	listingRepo repository.ListingRepository,
	vectorRepo repository.VectorRepository,
	artifacts ArtifactStore,
	mlCfg config.MLConfig,
) TrainingService {
	return &trainingService{
		listingRepo: listingRepo,
		vectorRepo:  vectorRepo,
		artifacts:   artifacts,
		mlCfg:       mlCfg,
	}
}

// Current 返回最近发布的模型快照，尚未训练时为 nil。
func (s *trainingService) Current() *Snapshot {
	return s.snapshot.Load()
}

// newVectorizer 按当前配置构建未训练的向量化器。
func (s *trainingService) newVectorizer() *tfidf.Vectorizer {
	extractor := feature.NewExtractor(feature.NewSnowballStemmer(), s.mlCfg.TFIDF.RentBuckets)
	return tfidf.NewVectorizer(extractor, tfidf.Config{
		MaxFeatures:     s.mlCfg.TFIDF.MaxFeatures,
		MinDocFrequency: s.mlCfg.TFIDF.MinDocFrequency,
	})
}

// newClusterer 按当前配置构建未训练的聚类器。
func (s *trainingService) newClusterer() *kmeans.Clusterer {
	return kmeans.NewClusterer(kmeans.Config{
		NumClusters:   s.mlCfg.KMeans.NumClusters,
		MaxIterations: s.mlCfg.KMeans.MaxIterations,
		MinCorpusSize: s.mlCfg.KMeans.MinCorpusSize,
	}, s.mlCfg.Geo)
}

// TrainModels 在当前在租房源语料上完成一轮全量训练并原子发布新快照。
// 训练失败只影响本轮，上一个快照继续对外服务。
func (s *trainingService) TrainModels(ctx context.Context) (*TrainStats, error) {
	s.trainMu.Lock()
	defer s.trainMu.Unlock()

	log.Info("[TrainingService] 开始模型训练")

	// 1. 读取语料快照
	listings, err := s.listingRepo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取房源语料失败: %w", err)
	}
	log.Infof("[TrainingService] 步骤1: 读取到 %d 条在租房源", len(listings))
	if len(listings) < minTrainingCorpusSize {
		log.Warnf("[TrainingService] 语料不足 (%d < %d)，放弃本轮训练", len(listings), minTrainingCorpusSize)
		return nil, ml.ErrInsufficientData
	}

	version := time.Now().UTC().Format("20060102150405")

	// 2. 训练 TF-IDF 向量化器并生成全量房源向量
	vectorizer := s.newVectorizer()
	vectorizer.Fit(listings)
	log.Infof("[TrainingService] 步骤2: TF-IDF 词表构建完成, 词表大小: %d", vectorizer.VocabularySize())

	propertyVectors := make([]tfidf.PropertyVector, 0, len(listings))
	for _, l := range listings {
		propertyVectors = append(propertyVectors, tfidf.PropertyVector{
			ListingID: l.ID,
			Vector:    vectorizer.Transform(l),
		})
	}

	// 3. 训练 K-Means 聚类器（语料太小时跳过，模型保持未训练）
	clusterer := s.newClusterer()
	assignments, kmeansErr := clusterer.Fit(listings)
	kmeansEnabled := kmeansErr == nil
	if kmeansErr != nil {
		if errors.Is(kmeansErr, ml.ErrInsufficientData) {
			log.Warnf("[TrainingService] 步骤3: 语料不足，跳过聚类训练 (%d 条)", len(listings))
		} else {
			log.Error("[TrainingService] 步骤3: 聚类训练失败", kmeansErr)
		}
		clusterer = nil
	} else {
		log.Infof("[TrainingService] 步骤3: K-Means 训练完成, 簇数: %d", clusterer.NumClusters())
	}

	// 4. 持久化向量与聚类结果（写失败只记日志，不中断训练）
	s.persistVectors(ctx, version, listings, propertyVectors, assignments, kmeansEnabled)
	if kmeansEnabled {
		s.persistClusters(ctx, version, clusterer)
	}

	// 5. 旁路构建完毕，原子发布新快照
	snap := &Snapshot{
		Version:         version,
		TrainedAt:       time.Now(),
		PropertyCount:   len(listings),
		Vectorizer:      vectorizer,
		Clusterer:       clusterer,
		PropertyVectors: propertyVectors,
	}
	s.snapshot.Store(snap)

	// 6. 导出模型制品到对象存储
	if s.artifacts != nil {
		if data, err := marshalSnapshot(snap); err != nil {
			log.Error("[TrainingService] 序列化模型制品失败", err)
		} else if err := s.artifacts.Save(ctx, version, data); err != nil {
			log.Error("[TrainingService] 导出模型制品失败", err)
		} else {
			log.Infof("[TrainingService] 步骤6: 模型制品已导出, version: %s", version)
		}
	}

	stats := &TrainStats{
		Version:         version,
		TotalProperties: len(listings),
		VocabularySize:  vectorizer.VocabularySize(),
		TFIDFVectors:    len(propertyVectors),
		Clusters:        snap.ClusterCount(),
		KMeansEnabled:   kmeansEnabled,
	}
	log.Infow("[TrainingService] 模型训练完成",
		"version", stats.Version,
		"properties", stats.TotalProperties,
		"vocabulary", stats.VocabularySize,
		"clusters", stats.Clusters,
	)
	return stats, nil
}

// persistVectors 把每个房源的特征向量覆盖写入数据库。
func (s *trainingService) persistVectors(
	ctx context.Context,
	version string,
	listings []*model.Listing,
	propertyVectors []tfidf.PropertyVector,
	assignments []int,
	kmeansEnabled bool,
) {
	rows := make([]*model.PropertyFeatureVector, 0, len(listings))
	for i, l := range listings {
		row := &model.PropertyFeatureVector{
			ListingID:           l.ID,
			TFIDFVector:         model.FloatVector(propertyVectors[i].Vector),
			ModelVersion:        version,
			NormalizedRent:      l.RentAmount / rentScaleDivisor,
			NormalizedBedrooms:  float64(l.Bedrooms) / roomCountScaleDivisor,
			NormalizedBathrooms: float64(l.Bathrooms) / roomCountScaleDivisor,
			Latitude:            l.Latitude,
			Longitude:           l.Longitude,
		}
		if kmeansEnabled && i < len(assignments) {
			clusterID := assignments[i]
			row.GeoClusterID = &clusterID
		}
		rows = append(rows, row)
	}

	if err := s.vectorRepo.UpsertPropertyVectors(ctx, rows); err != nil {
		log.Error("[TrainingService] 持久化房源向量失败", err)
		return
	}
	if err := s.vectorRepo.DeleteVectorsNotVersion(ctx, version); err != nil {
		log.Error("[TrainingService] 清理旧版本向量失败", err)
	}
}

// persistClusters 把聚类结果覆盖写入数据库。
func (s *trainingService) persistClusters(ctx context.Context, version string, clusterer *kmeans.Clusterer) {
	metas := clusterer.Clusters()
	rows := make([]*model.GeoCluster, 0, len(metas))
	for _, m := range metas {
		rows = append(rows, &model.GeoCluster{
			ClusterID:         m.ClusterID,
			CentroidLatitude:  m.CentroidLatitude,
			CentroidLongitude: m.CentroidLongitude,
			CentroidRent:      m.CentroidRent,
			PropertyCount:     m.PropertyCount,
			AvgRent:           m.AvgRent,
			MinRent:           m.MinRent,
			MaxRent:           m.MaxRent,
			PrimaryCity:       m.PrimaryCity,
			PropertyIDs:       model.UintList(m.PropertyIDs),
			ModelVersion:      version,
		})
	}

	if err := s.vectorRepo.UpsertClusters(ctx, rows); err != nil {
		log.Error("[TrainingService] 持久化聚类结果失败", err)
		return
	}
	if err := s.vectorRepo.DeleteClustersNotVersion(ctx, version); err != nil {
		log.Error("[TrainingService] 清理旧版本聚类失败", err)
	}
}

// LoadLatestArtifact 从对象存储恢复最近一次导出的模型快照。
// 进程启动时调用，让服务在首次重训完成前就能提供推荐。
func (s *trainingService) LoadLatestArtifact(ctx context.Context) error {
	if s.artifacts == nil {
		return nil
	}
	data, err := s.artifacts.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("读取模型制品失败: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	snap, err := unmarshalSnapshot(data, s.newVectorizer(), s.newClusterer())
	if err != nil {
		return err
	}
	s.snapshot.Store(snap)
	log.Infof("[TrainingService] 已从制品恢复模型快照, version: %s, 房源数: %d", snap.Version, snap.PropertyCount)
	return nil
}

// Status 返回当前模型状态。
func (s *trainingService) Status() ModelStatus {
	snap := s.snapshot.Load()
	if snap == nil {
		return ModelStatus{Trained: false}
	}
	trainedAt := snap.TrainedAt
	return ModelStatus{
		Trained:        true,
		Version:        snap.Version,
		LastTrainedAt:  &trainedAt,
		PropertyCount:  snap.PropertyCount,
		VocabularySize: snap.Vectorizer.VocabularySize(),
		ClusterCount:   snap.ClusterCount(),
	}
}

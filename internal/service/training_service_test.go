package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/model"
)

func testMLConfig() config.MLConfig {
	return config.MLConfig{
		TFIDF: config.TFIDFConfig{
			MaxFeatures:     500,
			MinDocFrequency: 2,
			RentBuckets: config.RentBucketsConfig{
				VeryLow: 5000, Low: 10000, Medium: 20000, High: 30000,
			},
		},
		KMeans: config.KMeansConfig{
			NumClusters:   4,
			MaxIterations: 100,
			MinCorpusSize: 10,
		},
		Recommend: config.RecommendConfig{
			TopN:                20,
			SimilarityThreshold: 0.3,
			MinInteractions:     3,
			RetentionDays:       7,
			SearchHistoryLimit:  50,
			ViewHistoryLimit:    100,
		},
		Geo: config.GeoConfig{
			DefaultLatitude:  27.7172,
			DefaultLongitude: 85.324,
			CityCoordinates: map[string]config.CityCoordinate{
				"kathmandu": {Latitude: 27.7172, Longitude: 85.324},
				"lalitpur":  {Latitude: 27.6588, Longitude: 85.3247},
			},
		},
	}
}

// trainingCorpus 构造 n 条带坐标的加德满都房源，租金从 5000 到 40000 均匀分布。
func trainingCorpus(n int) []*model.Listing {
	listings := make([]*model.Listing, 0, n)
	for i := 0; i < n; i++ {
		rent := 5000 + float64(i)*(35000/float64(n-1))
		listings = append(listings, &model.Listing{
			ID:          uint(i + 1),
			Title:       fmt.Sprintf("Cozy apartment %d near Thamel", i),
			Description: "Bright room with parking and wifi access",
			City:        "Kathmandu",
			Type:        "apartment",
			Bedrooms:    1 + i%3,
			Bathrooms:   1,
			RentAmount:  rent,
			Latitude:    ptrF(27.70 + float64(i)*0.002),
			Longitude:   ptrF(85.31 + float64(i)*0.002),
			Status:      "active",
		})
	}
	return listings
}

func ptrF(v float64) *float64 { return &v }

func TestTrainModelsInsufficientCorpus(t *testing.T) {
	listingRepo := &fakeListingRepo{listings: trainingCorpus(12)[:2]}
	svc := NewTrainingService(listingRepo, &fakeVectorRepo{}, nil, testMLConfig())

	_, err := svc.TrainModels(context.Background())
	assert.ErrorIs(t, err, ml.ErrInsufficientData)
	assert.Nil(t, svc.Current())
}

func TestTrainModelsPublishesSnapshot(t *testing.T) {
	corpus := trainingCorpus(12)
	listingRepo := &fakeListingRepo{listings: corpus}
	vectorRepo := &fakeVectorRepo{}
	artifacts := newFakeArtifactStore()
	svc := NewTrainingService(listingRepo, vectorRepo, artifacts, testMLConfig())

	stats, err := svc.TrainModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, stats.TotalProperties)
	assert.Equal(t, 12, stats.TFIDFVectors)
	assert.Greater(t, stats.VocabularySize, 0)
	assert.True(t, stats.KMeansEnabled)
	assert.Greater(t, stats.Clusters, 0)

	snap := svc.Current()
	require.NotNil(t, snap)
	assert.Equal(t, stats.Version, snap.Version)
	assert.Len(t, snap.PropertyVectors, 12)
	assert.True(t, snap.Clusterer.Trained())

	// 向量与聚类结果持久化
	require.Len(t, vectorRepo.vectors, 12)
	for _, v := range vectorRepo.vectors {
		assert.Equal(t, stats.Version, v.ModelVersion)
		assert.NotNil(t, v.GeoClusterID)
	}
	assert.NotEmpty(t, vectorRepo.clusters)

	// 制品导出
	assert.NotEmpty(t, artifacts.saved[stats.Version])
}

func TestTrainModelsSkipsKMeansOnSmallCorpus(t *testing.T) {
	cfg := testMLConfig()
	cfg.KMeans.MinCorpusSize = 10
	// 5 条语料：够 TF-IDF，不够聚类
	listingRepo := &fakeListingRepo{listings: trainingCorpus(12)[:5]}
	vectorRepo := &fakeVectorRepo{}
	svc := NewTrainingService(listingRepo, vectorRepo, nil, cfg)

	stats, err := svc.TrainModels(context.Background())
	require.NoError(t, err)

	assert.False(t, stats.KMeansEnabled)
	assert.Zero(t, stats.Clusters)

	snap := svc.Current()
	require.NotNil(t, snap)
	assert.Nil(t, snap.Clusterer)
	for _, v := range vectorRepo.vectors {
		assert.Nil(t, v.GeoClusterID)
	}
}

func TestTrainModelsFailureKeepsOldSnapshot(t *testing.T) {
	corpus := trainingCorpus(12)
	listingRepo := &fakeListingRepo{listings: corpus}
	svc := NewTrainingService(listingRepo, &fakeVectorRepo{}, nil, testMLConfig())

	_, err := svc.TrainModels(context.Background())
	require.NoError(t, err)
	oldSnap := svc.Current()

	// 第二轮语料坍缩到不足，老快照必须继续服务
	listingRepo.listings = corpus[:2]
	_, err = svc.TrainModels(context.Background())
	assert.ErrorIs(t, err, ml.ErrInsufficientData)
	assert.Same(t, oldSnap, svc.Current())
}

func TestLoadLatestArtifactRestoresSnapshot(t *testing.T) {
	corpus := trainingCorpus(12)
	artifacts := newFakeArtifactStore()
	svc := NewTrainingService(&fakeListingRepo{listings: corpus}, &fakeVectorRepo{}, artifacts, testMLConfig())

	stats, err := svc.TrainModels(context.Background())
	require.NoError(t, err)

	// 模拟重启：新实例从制品恢复
	restored := NewTrainingService(&fakeListingRepo{}, &fakeVectorRepo{}, artifacts, testMLConfig())
	require.NoError(t, restored.LoadLatestArtifact(context.Background()))

	snap := restored.Current()
	require.NotNil(t, snap)
	assert.Equal(t, stats.Version, snap.Version)
	assert.Len(t, snap.PropertyVectors, 12)
	assert.True(t, snap.Clusterer.Trained())

	// 恢复的向量化器产出与训练时一致的向量
	want := svc.Current().Vectorizer.Transform(corpus[3])
	assert.Equal(t, want, snap.Vectorizer.Transform(corpus[3]))
}

func TestLoadLatestArtifactNoArtifact(t *testing.T) {
	svc := NewTrainingService(&fakeListingRepo{}, &fakeVectorRepo{}, newFakeArtifactStore(), testMLConfig())
	require.NoError(t, svc.LoadLatestArtifact(context.Background()))
	assert.Nil(t, svc.Current())
}

func TestStatusReflectsSnapshot(t *testing.T) {
	svc := NewTrainingService(&fakeListingRepo{listings: trainingCorpus(12)}, &fakeVectorRepo{}, nil, testMLConfig())

	assert.False(t, svc.Status().Trained)

	stats, err := svc.TrainModels(context.Background())
	require.NoError(t, err)

	status := svc.Status()
	assert.True(t, status.Trained)
	assert.Equal(t, stats.Version, status.Version)
	assert.Equal(t, 12, status.PropertyCount)
	assert.Equal(t, stats.Clusters, status.ClusterCount)
	require.NotNil(t, status.LastTrainedAt)
}

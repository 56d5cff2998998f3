// Package service 提供了推荐核心的业务逻辑层。
package service

import (
	"encoding/json"
	"fmt"
	"time"

	"ghar-khoj-ml-go/internal/ml/kmeans"
	"ghar-khoj-ml-go/internal/ml/tfidf"
)

// Snapshot 是一次训练产出的完整模型快照。
// 训练在旁路构建新快照后原子替换发布，已发布的快照不可变，
// 并发读取方永远看到一致的词表、向量与质心。
type Snapshot struct {
	Version         string
	TrainedAt       time.Time
	PropertyCount   int
	Vectorizer      *tfidf.Vectorizer
	Clusterer       *kmeans.Clusterer
	PropertyVectors []tfidf.PropertyVector
}

// ClusterCount 返回快照中的簇数，聚类未训练时为 0。
func (s *Snapshot) ClusterCount() int {
	if s == nil || s.Clusterer == nil || !s.Clusterer.Trained() {
		return 0
	}
	return len(s.Clusterer.Clusters())
}

// artifactVector 是制品中的单条房源向量。
type artifactVector struct {
	ListingID uint      `json:"listing_id"`
	Vector    []float64 `json:"vector"`
}

// snapshotArtifact 是模型快照的持久化形态，导出到对象存储，
// 进程重启后可直接恢复服务而无需等待首次重训。
type snapshotArtifact struct {
	Version         string           `json:"version"`
	TrainedAt       time.Time        `json:"trained_at"`
	PropertyCount   int              `json:"property_count"`
	TFIDF           tfidf.State      `json:"tfidf"`
	KMeans          *kmeans.State    `json:"kmeans,omitempty"`
	PropertyVectors []artifactVector `json:"property_vectors"`
}

// marshalSnapshot 把快照序列化为制品 JSON。
func marshalSnapshot(snap *Snapshot) ([]byte, error) {
	artifact := snapshotArtifact{
		Version:       snap.Version,
		TrainedAt:     snap.TrainedAt,
		PropertyCount: snap.PropertyCount,
		TFIDF:         snap.Vectorizer.ExportState(),
	}
	if snap.Clusterer != nil && snap.Clusterer.Trained() {
		state := snap.Clusterer.ExportState()
		artifact.KMeans = &state
	}
	artifact.PropertyVectors = make([]artifactVector, 0, len(snap.PropertyVectors))
	for _, pv := range snap.PropertyVectors {
		artifact.PropertyVectors = append(artifact.PropertyVectors, artifactVector{
			ListingID: pv.ListingID,
			Vector:    pv.Vector,
		})
	}
	return json.Marshal(artifact)
}

// unmarshalSnapshot 从制品 JSON 恢复快照。
// 向量化器和聚类器由调用方提供未训练实例，在其上恢复状态。
func unmarshalSnapshot(data []byte, vectorizer *tfidf.Vectorizer, clusterer *kmeans.Clusterer) (*Snapshot, error) {
	var artifact snapshotArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("解析模型制品失败: %w", err)
	}

	vectorizer.RestoreState(artifact.TFIDF)
	snap := &Snapshot{
		Version:       artifact.Version,
		TrainedAt:     artifact.TrainedAt,
		PropertyCount: artifact.PropertyCount,
		Vectorizer:    vectorizer,
	}
	if artifact.KMeans != nil {
		clusterer.RestoreState(*artifact.KMeans)
		snap.Clusterer = clusterer
	}
	snap.PropertyVectors = make([]tfidf.PropertyVector, 0, len(artifact.PropertyVectors))
	for _, av := range artifact.PropertyVectors {
		snap.PropertyVectors = append(snap.PropertyVectors, tfidf.PropertyVector{
			ListingID: av.ListingID,
			Vector:    av.Vector,
		})
	}
	return snap, nil
}

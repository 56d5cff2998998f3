// Package tfidf 实现面向房源内容推荐的 TF-IDF 向量化器。
package tfidf

import (
	"math"
	"sort"

	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/ml/feature"
	"ghar-khoj-ml-go/internal/model"
)

// 词表保留的词最多出现在语料 80% 的文档中，过滤接近全量出现的噪声词。
const maxDocFrequencyRatio = 0.8

// Config 是向量化器的训练参数。
type Config struct {
	MaxFeatures     int
	MinDocFrequency int
}

// Vectorizer 在一次 Fit 中建立有界词表和 IDF 权重，之后只读。
// 并发安全性由上层保证：训练构建新实例后整体发布，不做就地更新。
type Vectorizer struct {
	maxFeatures     int
	minDocFrequency int
	extractor       *feature.Extractor

	vocabulary map[string]int
	idf        map[string]float64
	docCount   int
}

// State 是可序列化的训练结果，用于模型制品导出与进程启动时恢复。
type State struct {
	Vocabulary map[string]int     `json:"vocabulary"`
	IDF        map[string]float64 `json:"idf"`
	DocCount   int                `json:"doc_count"`
}

// NewVectorizer 创建一个新的 Vectorizer 实例。
func NewVectorizer(extractor *feature.Extractor, cfg Config) *Vectorizer {
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = 500
	}
	if cfg.MinDocFrequency <= 0 {
		cfg.MinDocFrequency = 2
	}
	return &Vectorizer{
		maxFeatures:     cfg.MaxFeatures,
		minDocFrequency: cfg.MinDocFrequency,
		extractor:       extractor,
		vocabulary:      make(map[string]int),
		idf:             make(map[string]float64),
	}
}

// Fit 在房源语料上统计文档频率并建立词表。
// 语料退化（为空或所有词都被过滤）时得到空词表，这是合法的已训练状态。
func (v *Vectorizer) Fit(listings []*model.Listing) {
	v.docCount = len(listings)
	v.vocabulary = make(map[string]int)
	v.idf = make(map[string]float64)

	// 1. 统计每个词出现过的文档数
	docFreq := make(map[string]int)
	for _, l := range listings {
		seen := make(map[string]struct{})
		for _, term := range v.extractor.Extract(l) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			docFreq[term]++
		}
	}

	// 2. 按文档频率区间过滤，再按 df 降序取前 maxFeatures 个
	maxDocs := int(math.Floor(float64(v.docCount) * maxDocFrequencyRatio))
	type termFreq struct {
		term string
		df   int
	}
	retained := make([]termFreq, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= v.minDocFrequency && df <= maxDocs {
			retained = append(retained, termFreq{term: term, df: df})
		}
	}
	sort.Slice(retained, func(i, j int) bool {
		if retained[i].df != retained[j].df {
			return retained[i].df > retained[j].df
		}
		return retained[i].term < retained[j].term
	})
	if len(retained) > v.maxFeatures {
		retained = retained[:v.maxFeatures]
	}

	// 3. 分配词表下标并计算平滑 IDF: ln((N+1)/(df+1)) + 1，恒为正
	for index, tf := range retained {
		v.vocabulary[tf.term] = index
		v.idf[tf.term] = math.Log(float64(v.docCount+1)/float64(tf.df+1)) + 1
	}
}

// Transform 把房源转换为 L2 归一化的 TF-IDF 向量。
// 词表为空时返回零长度向量；词表外的词被忽略。
func (v *Vectorizer) Transform(l *model.Listing) []float64 {
	features := v.extractor.Extract(l)
	vector := make([]float64, len(v.vocabulary))
	if len(features) == 0 || len(vector) == 0 {
		return vector
	}

	termCounts := make(map[string]int)
	for _, term := range features {
		termCounts[term]++
	}

	totalTerms := float64(len(features))
	for term, count := range termCounts {
		index, ok := v.vocabulary[term]
		if !ok {
			continue
		}
		tf := float64(count) / totalTerms
		vector[index] = tf * v.idf[term]
	}

	// L2 归一化：非零向量的欧氏范数为 1
	var sumSquares float64
	for _, w := range vector {
		sumSquares += w * w
	}
	if magnitude := math.Sqrt(sumSquares); magnitude > 0 {
		for i := range vector {
			vector[i] /= magnitude
		}
	}
	return vector
}

// VocabularySize 返回当前词表大小。
func (v *Vectorizer) VocabularySize() int {
	return len(v.vocabulary)
}

// IDF 返回指定词的 IDF 权重，词不在词表中时返回 0。
func (v *Vectorizer) IDF(term string) float64 {
	return v.idf[term]
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 任一向量为零向量时返回 0（而不是 NaN）；维度不一致时返回 ErrDimensionMismatch。
func (v *Vectorizer) CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ml.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// PropertyVector 把房源 ID 和它的特征向量绑定在一起。
type PropertyVector struct {
	ListingID uint
	Vector    []float64
}

// Similarity 是一条相似度计算结果。
type Similarity struct {
	ListingID uint
	Score     float64
}

// FindSimilar 对所有候选向量计算相似度，按分数降序返回前 topN 条。
// 稳定排序：分数相同的保持候选原始顺序。维度不一致的候选被跳过。
func (v *Vectorizer) FindSimilar(userVector []float64, candidates []PropertyVector, topN int) []Similarity {
	results := make([]Similarity, 0, len(candidates))
	for _, c := range candidates {
		score, err := v.CosineSimilarity(userVector, c.Vector)
		if err != nil {
			continue
		}
		results = append(results, Similarity{ListingID: c.ListingID, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topN >= 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// ExportState 导出训练结果用于模型制品序列化。
func (v *Vectorizer) ExportState() State {
	return State{Vocabulary: v.vocabulary, IDF: v.idf, DocCount: v.docCount}
}

// RestoreState 从导出的制品恢复训练结果。
func (v *Vectorizer) RestoreState(s State) {
	if s.Vocabulary == nil {
		s.Vocabulary = make(map[string]int)
	}
	if s.IDF == nil {
		s.IDF = make(map[string]float64)
	}
	v.vocabulary = s.Vocabulary
	v.idf = s.IDF
	v.docCount = s.DocCount
}

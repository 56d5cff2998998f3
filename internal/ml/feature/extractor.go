package feature

import (
	"fmt"
	"regexp"
	"strings"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/model"
)

var (
	tokenPattern   = regexp.MustCompile(`[a-z0-9]+`)
	numericPattern = regexp.MustCompile(`^\d+$`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Extractor 把一条房源记录转换为归一化的特征词序列。
// 自由文本经过分词和词干化，结构化字段映射为带前缀的标签词。
// 重复的词携带词频信息，必须保留，不能去重。
type Extractor struct {
	stemmer Stemmer
	buckets config.RentBucketsConfig
}

// NewExtractor 创建一个新的 Extractor 实例。
func NewExtractor(stemmer Stemmer, buckets config.RentBucketsConfig) *Extractor {
	return &Extractor{stemmer: stemmer, buckets: buckets}
}

// Extract 提取房源的全部特征词。缺失的字段不产生词，任何输入都不会报错。
func (e *Extractor) Extract(l *model.Listing) []string {
	if l == nil {
		return nil
	}
	features := make([]string, 0, 32)

	// 标题和描述的自由文本特征
	features = append(features, e.tokenize(l.Title)...)
	features = append(features, e.tokenize(l.Description)...)

	// 位置特征
	if l.City != "" {
		features = append(features, "city_"+slugify(l.City))
	}
	if l.CollegeName != "" {
		features = append(features, "college_"+slugify(l.CollegeName))
	}

	// 结构化特征
	if l.Bedrooms > 0 {
		features = append(features, fmt.Sprintf("bedrooms_%d", l.Bedrooms))
	}
	if l.Bathrooms > 0 {
		features = append(features, fmt.Sprintf("bathrooms_%d", l.Bathrooms))
	}
	if l.Type != "" {
		features = append(features, "type_"+slugify(l.Type))
	}
	if l.Furnished != "" {
		features = append(features, "furnished_"+slugify(l.Furnished))
	}

	// 设施特征
	for _, amenity := range l.Amenities {
		if amenity != "" {
			features = append(features, "amenity_"+slugify(amenity))
		}
	}

	// 租金分桶特征
	if l.RentAmount > 0 {
		features = append(features, "rent_"+e.rentBucket(l.RentAmount))
	}

	return features
}

// tokenize 对自由文本做小写化、分词、去短词去纯数字、词干化。
func (e *Extractor) tokenize(text string) []string {
	if text == "" {
		return nil
	}
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) <= 2 || numericPattern.MatchString(tok) {
			continue
		}
		tokens = append(tokens, e.stemmer.Stem(tok))
	}
	return tokens
}

// rentBucket 按配置的阈值把租金映射到五档标签。
func (e *Extractor) rentBucket(rent float64) string {
	switch {
	case rent < e.buckets.VeryLow:
		return "very_low"
	case rent < e.buckets.Low:
		return "low"
	case rent < e.buckets.Medium:
		return "medium"
	case rent < e.buckets.High:
		return "high"
	default:
		return "very_high"
	}
}

// slugify 把分类值转成小写下划线形式的标签片段。
func slugify(s string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), "_")
}

// Package kmeans 实现基于经纬度和租金的 K-Means 聚类，服务冷启动推荐。
package kmeans

import (
	"math"
	"math/rand"
	"strings"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/model"
)

// 语料整体缺失某一维数据时使用的缩放兜底区间。
const (
	fallbackLatMin  = 27.6
	fallbackLatMax  = 27.8
	fallbackLonMin  = 85.2
	fallbackLonMax  = 85.4
	fallbackRentMax = 50000.0
)

// Config 是聚类器的训练参数。Seed 固定默认值，保证同一语料重复训练结果可复现。
type Config struct {
	NumClusters   int
	MaxIterations int
	MinCorpusSize int
	Seed          int64
}

// scaler 记录训练时某一特征维度的取值范围，用于 min-max 归一化。
type scaler struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// scalerSet 是三个特征维度（纬度、经度、租金）的缩放器。
type scalerSet struct {
	Latitude  scaler `json:"latitude"`
	Longitude scaler `json:"longitude"`
	Rent      scaler `json:"rent"`
}

// ClusterMeta 是单个簇的质心（原始量纲）与成员统计。
type ClusterMeta struct {
	ClusterID         int     `json:"cluster_id"`
	CentroidLatitude  float64 `json:"centroid_latitude"`
	CentroidLongitude float64 `json:"centroid_longitude"`
	CentroidRent      float64 `json:"centroid_rent"`
	PropertyCount     int     `json:"property_count"`
	AvgRent           float64 `json:"avg_rent"`
	MinRent           float64 `json:"min_rent"`
	MaxRent           float64 `json:"max_rent"`
	PrimaryCity       string  `json:"primary_city"`
	PropertyIDs       []uint  `json:"property_ids"`
}

// Assignment 是一次 Predict 的结果：最近簇及其元数据。
type Assignment struct {
	ClusterID int
	Distance  float64
	Meta      ClusterMeta
}

// Preference 是用户的地理/租金偏好点。
type Preference struct {
	City          string
	Latitude      *float64
	Longitude     *float64
	PreferredRent *float64
	MinRent       *float64
	MaxRent       *float64
}

// Clusterer 把房源按归一化的 (纬度, 经度, 租金) 三维点做 K-Means 聚类。
// 状态只在 Fit 中写入；上层通过整体替换实例来发布新模型。
type Clusterer struct {
	numClusters   int
	maxIterations int
	minCorpusSize int
	seed          int64
	geo           config.GeoConfig

	trained   bool
	centroids [][]float64
	scalers   scalerSet
	clusters  []ClusterMeta
}

// State 是可序列化的训练结果。
type State struct {
	Trained     bool          `json:"trained"`
	NumClusters int           `json:"num_clusters"`
	Centroids   [][]float64   `json:"centroids"`
	Scalers     scalerSet     `json:"scalers"`
	Clusters    []ClusterMeta `json:"clusters"`
}

// NewClusterer 创建一个新的 Clusterer 实例。
func NewClusterer(cfg Config, geo config.GeoConfig) *Clusterer {
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = 10
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	if cfg.MinCorpusSize <= 0 {
		cfg.MinCorpusSize = 10
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Clusterer{
		numClusters:   cfg.NumClusters,
		maxIterations: cfg.MaxIterations,
		minCorpusSize: cfg.MinCorpusSize,
		seed:          cfg.Seed,
		geo:           geo,
	}
}

// Trained 报告模型是否已成功训练。
func (c *Clusterer) Trained() bool {
	return c.trained
}

// Clusters 返回训练得到的全部簇元数据。
func (c *Clusterer) Clusters() []ClusterMeta {
	return c.clusters
}

// NumClusters 返回实际使用的簇数（小语料时可能小于配置值）。
func (c *Clusterer) NumClusters() int {
	return c.numClusters
}

// Fit 训练 K-Means 模型，返回与输入同序的簇分配。
// 语料小于最小规模时返回 ErrInsufficientData，模型保持未训练状态。
func (c *Clusterer) Fit(listings []*model.Listing) ([]int, error) {
	n := len(listings)
	if n < c.minCorpusSize {
		c.trained = false
		return nil, ml.ErrInsufficientData
	}

	// 语料不足以支撑配置的簇数时自适应缩减
	if n < c.numClusters*2 {
		c.numClusters = max(2, n/2)
	}

	c.calculateScalers(listings)
	points := c.prepareFeaturePoints(listings)

	rng := rand.New(rand.NewSource(c.seed))
	centroids := c.initCentroidsKMeansPlusPlus(points, rng)
	assignments := make([]int, n)

	// Lloyd 迭代：分配-重算，直到分配不再变化或达到迭代上限
	for iter := 0; iter < c.maxIterations; iter++ {
		changed := false
		for i, p := range points {
			nearest := nearestCentroid(p, centroids)
			if assignments[i] != nearest || iter == 0 {
				assignments[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, c.numClusters)
		sums := make([][]float64, c.numClusters)
		for k := range sums {
			sums[k] = make([]float64, 3)
		}
		for i, p := range points {
			k := assignments[i]
			counts[k]++
			for d := 0; d < 3; d++ {
				sums[k][d] += p[d]
			}
		}
		for k := 0; k < c.numClusters; k++ {
			// 空簇保留原质心，避免除零
			if counts[k] == 0 {
				continue
			}
			for d := 0; d < 3; d++ {
				centroids[k][d] = sums[k][d] / float64(counts[k])
			}
		}
	}

	c.centroids = centroids
	c.buildClusterMeta(listings, assignments)
	c.trained = true
	return assignments, nil
}

// Predict 把用户偏好点归一化（使用训练时的缩放器）后找最近质心。
func (c *Clusterer) Predict(pref Preference) (*Assignment, error) {
	if !c.trained {
		return nil, ml.ErrModelNotTrained
	}

	lat, lon := c.resolveCoordinates(pref.City, pref.Latitude, pref.Longitude)
	rent := c.resolvePreferredRent(pref)

	point := []float64{
		normalize(lat, c.scalers.Latitude),
		normalize(lon, c.scalers.Longitude),
		normalize(rent, c.scalers.Rent),
	}

	nearest := 0
	minDist := math.Inf(1)
	for k, centroid := range c.centroids {
		if d := euclideanDistance(point, centroid); d < minDist {
			minDist = d
			nearest = k
		}
	}

	meta := ClusterMeta{ClusterID: nearest}
	for _, cm := range c.clusters {
		if cm.ClusterID == nearest {
			meta = cm
			break
		}
	}
	return &Assignment{ClusterID: nearest, Distance: minDist, Meta: meta}, nil
}

// calculateScalers 统计训练语料三个维度的取值范围。
// 缺失经纬度的房源不参与统计；租金只统计正值。
func (c *Clusterer) calculateScalers(listings []*model.Listing) {
	latMin, latMax := math.Inf(1), math.Inf(-1)
	lonMin, lonMax := math.Inf(1), math.Inf(-1)
	rentMin, rentMax := math.Inf(1), math.Inf(-1)

	for _, l := range listings {
		if l.Latitude != nil && *l.Latitude != 0 {
			latMin = math.Min(latMin, *l.Latitude)
			latMax = math.Max(latMax, *l.Latitude)
		}
		if l.Longitude != nil && *l.Longitude != 0 {
			lonMin = math.Min(lonMin, *l.Longitude)
			lonMax = math.Max(lonMax, *l.Longitude)
		}
		if l.RentAmount > 0 {
			rentMin = math.Min(rentMin, l.RentAmount)
			rentMax = math.Max(rentMax, l.RentAmount)
		}
	}

	if math.IsInf(latMin, 1) {
		latMin, latMax = fallbackLatMin, fallbackLatMax
	}
	if math.IsInf(lonMin, 1) {
		lonMin, lonMax = fallbackLonMin, fallbackLonMax
	}
	if math.IsInf(rentMin, 1) {
		rentMin, rentMax = 0, fallbackRentMax
	}

	c.scalers = scalerSet{
		Latitude:  scaler{Min: latMin, Max: latMax},
		Longitude: scaler{Min: lonMin, Max: lonMax},
		Rent:      scaler{Min: rentMin, Max: rentMax},
	}
}

// prepareFeaturePoints 把每个房源映射为归一化的三维特征点。
func (c *Clusterer) prepareFeaturePoints(listings []*model.Listing) [][]float64 {
	points := make([][]float64, len(listings))
	for i, l := range listings {
		lat, lon := c.resolveCoordinates(l.City, l.Latitude, l.Longitude)
		points[i] = []float64{
			normalize(lat, c.scalers.Latitude),
			normalize(lon, c.scalers.Longitude),
			normalize(l.RentAmount, c.scalers.Rent),
		}
	}
	return points
}

// resolveCoordinates 返回给定坐标，缺失时按城市查配置的兜底坐标表。
func (c *Clusterer) resolveCoordinates(city string, lat, lon *float64) (float64, float64) {
	if lat != nil && lon != nil && *lat != 0 && *lon != 0 {
		return *lat, *lon
	}
	if coord, ok := c.geo.CityCoordinates[strings.ToLower(strings.TrimSpace(city))]; ok {
		return coord.Latitude, coord.Longitude
	}
	return c.geo.DefaultLatitude, c.geo.DefaultLongitude
}

// resolvePreferredRent 取显式偏好租金，否则取最小/最大预算的中点。
func (c *Clusterer) resolvePreferredRent(pref Preference) float64 {
	if pref.PreferredRent != nil {
		return *pref.PreferredRent
	}
	minRent := 0.0
	if pref.MinRent != nil {
		minRent = *pref.MinRent
	}
	maxRent := fallbackRentMax
	if pref.MaxRent != nil {
		maxRent = *pref.MaxRent
	}
	return (minRent + maxRent) / 2
}

// initCentroidsKMeansPlusPlus 按 k-means++ 规则选择初始质心：
// 首个质心均匀随机，后续质心按到最近已选质心距离的平方加权随机。
func (c *Clusterer) initCentroidsKMeansPlusPlus(points [][]float64, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, c.numClusters)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))

	distances := make([]float64, len(points))
	for len(centroids) < c.numClusters {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, cent := range centroids {
				if dd := squaredDistance(p, cent); dd < d {
					d = dd
				}
			}
			distances[i] = d
			total += d
		}

		// 所有点都与已选质心重合时退化为均匀随机
		var next []float64
		if total == 0 {
			next = points[rng.Intn(len(points))]
		} else {
			target := rng.Float64() * total
			var cum float64
			next = points[len(points)-1]
			for i, d := range distances {
				cum += d
				if cum >= target {
					next = points[i]
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), next...))
	}
	return centroids
}

// buildClusterMeta 计算每个非空簇的成员统计与原始量纲质心。
func (c *Clusterer) buildClusterMeta(listings []*model.Listing, assignments []int) {
	c.clusters = c.clusters[:0]

	for clusterID := 0; clusterID < c.numClusters; clusterID++ {
		var members []*model.Listing
		var memberIDs []uint
		for i, l := range listings {
			if assignments[i] == clusterID {
				members = append(members, l)
				memberIDs = append(memberIDs, l.ID)
			}
		}
		if len(members) == 0 {
			continue
		}

		var rentSum float64
		rentMin, rentMax := math.Inf(1), math.Inf(-1)
		rentCount := 0
		cityFreq := make(map[string]int)
		cityOrder := make([]string, 0, len(members))
		for _, m := range members {
			if m.RentAmount > 0 {
				rentSum += m.RentAmount
				rentMin = math.Min(rentMin, m.RentAmount)
				rentMax = math.Max(rentMax, m.RentAmount)
				rentCount++
			}
			if m.City != "" {
				if _, seen := cityFreq[m.City]; !seen {
					cityOrder = append(cityOrder, m.City)
				}
				cityFreq[m.City]++
			}
		}

		avgRent := 0.0
		if rentCount > 0 {
			avgRent = rentSum / float64(rentCount)
		} else {
			rentMin, rentMax = 0, 0
		}

		// 最高频城市，频次相同取先出现者
		primaryCity := "Unknown"
		bestCount := 0
		for _, city := range cityOrder {
			if cityFreq[city] > bestCount {
				bestCount = cityFreq[city]
				primaryCity = city
			}
		}

		centroid := c.centroids[clusterID]
		c.clusters = append(c.clusters, ClusterMeta{
			ClusterID:         clusterID,
			CentroidLatitude:  denormalize(centroid[0], c.scalers.Latitude),
			CentroidLongitude: denormalize(centroid[1], c.scalers.Longitude),
			CentroidRent:      denormalize(centroid[2], c.scalers.Rent),
			PropertyCount:     len(members),
			AvgRent:           math.Round(avgRent),
			MinRent:           rentMin,
			MaxRent:           rentMax,
			PrimaryCity:       primaryCity,
			PropertyIDs:       memberIDs,
		})
	}
}

// ExportState 导出训练结果用于模型制品序列化。
func (c *Clusterer) ExportState() State {
	return State{
		Trained:     c.trained,
		NumClusters: c.numClusters,
		Centroids:   c.centroids,
		Scalers:     c.scalers,
		Clusters:    c.clusters,
	}
}

// RestoreState 从导出的制品恢复训练结果。
func (c *Clusterer) RestoreState(s State) {
	c.trained = s.Trained
	if s.NumClusters > 0 {
		c.numClusters = s.NumClusters
	}
	c.centroids = s.Centroids
	c.scalers = s.Scalers
	c.clusters = s.Clusters
}

// normalize 做 min-max 归一化；特征取值恒定（max == min）时固定映射到 0.5。
func normalize(value float64, s scaler) float64 {
	if s.Max == s.Min {
		return 0.5
	}
	return (value - s.Min) / (s.Max - s.Min)
}

// denormalize 把归一化值还原回原始量纲。
func denormalize(value float64, s scaler) float64 {
	return value*(s.Max-s.Min) + s.Min
}

func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	nearest := 0
	minDist := math.Inf(1)
	for k, c := range centroids {
		if d := squaredDistance(p, c); d < minDist {
			minDist = d
			nearest = k
		}
	}
	return nearest
}

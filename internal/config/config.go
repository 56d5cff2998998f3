// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	ML       MLConfig       `mapstructure:"ml"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// MLConfig 汇总推荐核心的所有可调参数。
type MLConfig struct {
	TFIDF     TFIDFConfig     `mapstructure:"tfidf"`
	KMeans    KMeansConfig    `mapstructure:"kmeans"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Geo       GeoConfig       `mapstructure:"geo"`
}

// TFIDFConfig 存储 TF-IDF 向量化器的配置。
type TFIDFConfig struct {
	MaxFeatures     int               `mapstructure:"max_features"`
	MinDocFrequency int               `mapstructure:"min_doc_frequency"`
	RentBuckets     RentBucketsConfig `mapstructure:"rent_buckets"`
}

// RentBucketsConfig 定义各档租金的上限（不含上限值本身），超过 High 即为 very_high。
// 货币单位随部署环境配置，不写死在代码里。
type RentBucketsConfig struct {
	VeryLow float64 `mapstructure:"very_low"`
	Low     float64 `mapstructure:"low"`
	Medium  float64 `mapstructure:"medium"`
	High    float64 `mapstructure:"high"`
}

// KMeansConfig 存储地理/租金聚类器的配置。
type KMeansConfig struct {
	NumClusters   int `mapstructure:"num_clusters"`
	MaxIterations int `mapstructure:"max_iterations"`
	MinCorpusSize int `mapstructure:"min_corpus_size"`
}

// RecommendConfig 存储推荐编排相关的配置。
type RecommendConfig struct {
	TopN                int     `mapstructure:"top_n"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinInteractions     int     `mapstructure:"min_interactions"`
	RetentionDays       int     `mapstructure:"retention_days"`
	SearchHistoryLimit  int     `mapstructure:"search_history_limit"`
	ViewHistoryLimit    int     `mapstructure:"view_history_limit"`
}

// SchedulerConfig 存储模型生命周期调度器的配置。
type SchedulerConfig struct {
	TrainIntervalHours     int `mapstructure:"train_interval_hours"`
	GenerateIntervalMins   int `mapstructure:"generate_interval_minutes"`
	BootstrapTrainDelaySec int `mapstructure:"bootstrap_train_delay_seconds"`
	BootstrapGenDelaySec   int `mapstructure:"bootstrap_generate_delay_seconds"`
	UserBatchSize          int `mapstructure:"user_batch_size"`
	WorkerCount            int `mapstructure:"worker_count"`
}

// GeoConfig 存储城市兜底坐标表。房源缺失经纬度时按城市名查表取近似坐标。
type GeoConfig struct {
	DefaultLatitude  float64                   `mapstructure:"default_latitude"`
	DefaultLongitude float64                   `mapstructure:"default_longitude"`
	CityCoordinates  map[string]CityCoordinate `mapstructure:"city_coordinates"`
}

// CityCoordinate 是单个城市的近似中心坐标。
type CityCoordinate struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

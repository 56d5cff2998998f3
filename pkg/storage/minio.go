// Package storage 提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// 模型制品的对象命名：每个版本一个对象，latest.json 指向最近一次导出。
const (
	artifactObjectPrefix = "models/snapshot-"
	artifactLatestObject = "models/latest.json"
	artifactContentType  = "application/json"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	// 1. 初始化 MinIO 客户端
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	log.Info("MinIO 客户端初始化成功")

	// 2. 检查存储桶 (Bucket) 是否存在，如果不存在则创建
	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}

	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", bucketName)
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", bucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", bucketName)
	}
}

// ModelArtifactStore 把训练产出的模型制品保存到 MinIO。
type ModelArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewModelArtifactStore 创建一个新的 ModelArtifactStore 实例。
func NewModelArtifactStore(client *minio.Client, bucket string) *ModelArtifactStore {
	return &ModelArtifactStore{client: client, bucket: bucket}
}

// Save 写入版本化的制品对象，并同步覆盖 latest.json。
func (s *ModelArtifactStore) Save(ctx context.Context, version string, data []byte) error {
	versioned := fmt.Sprintf("%s%s.json", artifactObjectPrefix, version)
	if err := s.putObject(ctx, versioned, data); err != nil {
		return fmt.Errorf("写入模型制品 %s 失败: %w", versioned, err)
	}
	if err := s.putObject(ctx, artifactLatestObject, data); err != nil {
		return fmt.Errorf("更新最新制品指针失败: %w", err)
	}
	return nil
}

// LoadLatest 读取最近一次导出的制品。制品不存在时返回 (nil, nil)。
func (s *ModelArtifactStore) LoadLatest(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, artifactLatestObject, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// 对象不存在在首次读取时才报错，按"尚无制品"处理
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *ModelArtifactStore) putObject(ctx context.Context, objectName string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: artifactContentType})
	return err
}

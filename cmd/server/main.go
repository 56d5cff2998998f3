// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/handler"
	"ghar-khoj-ml-go/internal/middleware"
	"ghar-khoj-ml-go/internal/pipeline"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/internal/scheduler"
	"ghar-khoj-ml-go/internal/service"
	"ghar-khoj-ml-go/pkg/database"
	"ghar-khoj-ml-go/pkg/kafka"
	"ghar-khoj-ml-go/pkg/log"
	"ghar-khoj-ml-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、MinIO 和 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	listingRepo := repository.NewListingRepository(database.DB)
	interactionRepo := repository.NewInteractionRepository(database.DB, database.RDB)
	vectorRepo := repository.NewVectorRepository(database.DB)
	recRepo := repository.NewRecommendationRepository(database.DB, database.RDB)
	profileRepo := repository.NewProfileRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	artifactStore := storage.NewModelArtifactStore(storage.MinioClient, cfg.MinIO.BucketName)
	trainingService := service.NewTrainingService(listingRepo, vectorRepo, artifactStore, cfg.ML)
	profileService := service.NewProfileService(interactionRepo, profileRepo, cfg.ML.Recommend)
	recommendationService := service.NewRecommendationService(
		trainingService, profileService,
		listingRepo, interactionRepo, recRepo, profileRepo,
		cfg.ML.Recommend,
	)

	// 5.1 进程启动时尝试从制品恢复上一次的模型快照
	if err := trainingService.LoadLatestArtifact(context.Background()); err != nil {
		log.Error("恢复模型制品失败，等待调度器首次重训", err)
	}

	// 6. 初始化交互事件管道 (Processor) 并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(interactionRepo)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7. 启动模型生命周期调度器
	sched := scheduler.New(trainingService, recommendationService, interactionRepo, cfg.ML.Scheduler, cfg.ML.Recommend)
	sched.Start(context.Background())

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	recHandler := handler.NewRecommendationHandler(recommendationService)
	modelHandler := handler.NewModelHandler(trainingService, sched)
	eventHandler := handler.NewEventHandler()

	apiV1 := r.Group("/api/v1")
	{
		recommendations := apiV1.Group("/recommendations")
		{
			recommendations.GET("", recHandler.List)
			recommendations.POST("/generate", recHandler.Generate)
			recommendations.POST("/:id/click", recHandler.Click)
			recommendations.POST("/:id/dismiss", recHandler.Dismiss)
		}

		modelGroup := apiV1.Group("/model")
		{
			modelGroup.POST("/retrain", modelHandler.Retrain)
			modelGroup.GET("/status", modelHandler.Status)
		}

		apiV1.POST("/events", eventHandler.Report)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停调度器，让进行中的训练/生成收尾
	sched.Stop()

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个阻塞循环，会随进程退出自然结束。
	log.Info("服务已优雅关闭")
}

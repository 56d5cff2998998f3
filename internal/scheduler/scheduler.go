// Package scheduler 驱动模型重训与推荐生成的周期任务。
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/service"
	"ghar-khoj-ml-go/pkg/log"
)

// 生成通道筛选活跃用户的时间窗口（天）。
const activeUserWindowDays = 30

// Trainer 是调度器依赖的训练入口。
type Trainer interface {
	TrainModels(ctx context.Context) (*service.TrainStats, error)
}

// Generator 是调度器依赖的推荐生成入口。
type Generator interface {
	GenerateRecommendations(ctx context.Context, userID uint) (*service.GenerateResult, error)
	UpdateTrending(ctx context.Context) error
	PruneExpired(ctx context.Context) (int64, error)
}

// ActiveUserSource 提供每轮生成要处理的用户集合。
type ActiveUserSource interface {
	FindActiveUserIDs(ctx context.Context, days, minInteractions, limit int) ([]uint, error)
}

// Status 是调度器的运行状态快照。
type Status struct {
	TrainRunning    bool       `json:"trainRunning"`
	GenerateRunning bool       `json:"generateRunning"`
	LastTrainAt     *time.Time `json:"lastTrainAt,omitempty"`
	LastGenerateAt  *time.Time `json:"lastGenerateAt,omitempty"`
}

// Scheduler 按固定周期触发重训与推荐生成，单实例内保证两类任务各自不重叠。
type Scheduler struct {
	trainer   Trainer
	generator Generator
	users     ActiveUserSource
	cfg       config.SchedulerConfig
	recCfg    config.RecommendConfig

	trainBusy atomic.Bool
	genBusy   atomic.Bool

	lastTrainAt    atomic.Pointer[time.Time]
	lastGenerateAt atomic.Pointer[time.Time]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建一个新的 Scheduler 实例。
func New(trainer Trainer, generator Generator, users ActiveUserSource, cfg config.SchedulerConfig, recCfg config.RecommendConfig) *Scheduler {
	return &Scheduler{
		trainer:   trainer,
		generator: generator,
		users:     users,
		cfg:       cfg,
		recCfg:    recCfg,
	}
}

// Start 启动两条调度循环。启动后先按引导延迟各跑一轮，再进入周期节奏。
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	trainInterval := time.Duration(s.cfg.TrainIntervalHours) * time.Hour
	genInterval := time.Duration(s.cfg.GenerateIntervalMins) * time.Minute
	trainDelay := time.Duration(s.cfg.BootstrapTrainDelaySec) * time.Second
	genDelay := time.Duration(s.cfg.BootstrapGenDelaySec) * time.Second

	s.wg.Add(2)
	go s.loop(ctx, "重训", trainDelay, trainInterval, s.RunTrainingPass)
	go s.loop(ctx, "生成", genDelay, genInterval, s.RunGenerationPass)

	log.Infow("[Scheduler] 调度器已启动",
		"trainInterval", trainInterval.String(),
		"generateInterval", genInterval.String(),
	)
}

// Stop 停止调度并等待进行中的任务收尾。
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info("[Scheduler] 调度器已停止")
}

// loop 先等引导延迟跑一轮，之后按固定间隔循环。
func (s *Scheduler) loop(ctx context.Context, name string, delay, interval time.Duration, pass func(context.Context)) {
	defer s.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
		pass(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("[Scheduler] %s循环退出", name)
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// RunTrainingPass 触发一轮模型重训。上一轮尚未结束时跳过本次触发。
func (s *Scheduler) RunTrainingPass(ctx context.Context) {
	if !s.trainBusy.CompareAndSwap(false, true) {
		log.Warnf("[Scheduler] 上一轮重训尚未结束，跳过本次触发")
		return
	}
	defer s.trainBusy.Store(false)

	stats, err := s.trainer.TrainModels(ctx)
	if err != nil {
		if errors.Is(err, ml.ErrInsufficientData) {
			log.Warnf("[Scheduler] 重训跳过: %v", err)
		} else {
			log.Error("[Scheduler] 重训失败", err)
		}
		return
	}

	now := time.Now()
	s.lastTrainAt.Store(&now)
	log.Infow("[Scheduler] 重训完成",
		"version", stats.Version,
		"properties", stats.TotalProperties,
		"clusters", stats.Clusters,
	)
}

// RunGenerationPass 为活跃用户批量生成推荐，随后清理过期推荐并刷新热门榜。
// 上一轮尚未结束时跳过本次触发。
func (s *Scheduler) RunGenerationPass(ctx context.Context) {
	if !s.genBusy.CompareAndSwap(false, true) {
		log.Warnf("[Scheduler] 上一轮生成尚未结束，跳过本次触发")
		return
	}
	defer s.genBusy.Store(false)

	userIDs, err := s.users.FindActiveUserIDs(ctx, activeUserWindowDays, s.recCfg.MinInteractions, s.cfg.UserBatchSize)
	if err != nil {
		log.Error("[Scheduler] 查询活跃用户失败", err)
		return
	}

	generated := s.generateForUsers(ctx, userIDs)

	if pruned, err := s.generator.PruneExpired(ctx); err != nil {
		log.Error("[Scheduler] 清理过期推荐失败", err)
	} else if pruned > 0 {
		log.Infof("[Scheduler] 清理过期推荐 %d 条", pruned)
	}

	if err := s.generator.UpdateTrending(ctx); err != nil {
		log.Error("[Scheduler] 更新热门榜失败", err)
	}

	now := time.Now()
	s.lastGenerateAt.Store(&now)
	log.Infow("[Scheduler] 生成通道完成",
		"users", len(userIDs),
		"succeeded", generated,
	)
}

// generateForUsers 用有界工作池并发生成，单个用户失败不影响其他用户。
func (s *Scheduler) generateForUsers(ctx context.Context, userIDs []uint) int {
	if len(userIDs) == 0 {
		return 0
	}

	workers := s.cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan uint)
	var succeeded atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				if _, err := s.generator.GenerateRecommendations(ctx, userID); err != nil {
					if errors.Is(err, ml.ErrModelNotTrained) {
						log.Warnf("[Scheduler] 模型未训练，用户 %d 本轮跳过", userID)
					} else {
						log.Errorf("[Scheduler] 用户 %d 推荐生成失败: %v", userID, err)
					}
					continue
				}
				succeeded.Add(1)
			}
		}()
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return int(succeeded.Load())
		case jobs <- userID:
		}
	}
	close(jobs)
	wg.Wait()
	return int(succeeded.Load())
}

// Status 返回调度器当前状态。
func (s *Scheduler) Status() Status {
	return Status{
		TrainRunning:    s.trainBusy.Load(),
		GenerateRunning: s.genBusy.Load(),
		LastTrainAt:     s.lastTrainAt.Load(),
		LastGenerateAt:  s.lastGenerateAt.Load(),
	}
}

package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghar-khoj-ml-go/internal/config"
	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/service"
	"ghar-khoj-ml-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

type fakeTrainer struct {
	mu       sync.Mutex
	calls    int
	err      error
	blockFor time.Duration
}

func (f *fakeTrainer) TrainModels(ctx context.Context) (*service.TrainStats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.blockFor > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.blockFor):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.TrainStats{Version: "test"}, nil
}

func (f *fakeTrainer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGenerator struct {
	mu          sync.Mutex
	generated   []uint
	generateErr map[uint]error
	trendCalls  int
	pruneCalls  int
}

func (f *fakeGenerator) GenerateRecommendations(_ context.Context, userID uint) (*service.GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.generateErr[userID]; ok {
		return nil, err
	}
	f.generated = append(f.generated, userID)
	return &service.GenerateResult{UserID: userID, Generated: 1}, nil
}

func (f *fakeGenerator) UpdateTrending(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trendCalls++
	return nil
}

func (f *fakeGenerator) PruneExpired(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneCalls++
	return 3, nil
}

func (f *fakeGenerator) generatedUsers() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.generated...)
}

type fakeUserSource struct {
	userIDs []uint
	err     error
}

func (f *fakeUserSource) FindActiveUserIDs(_ context.Context, _, _, _ int) ([]uint, error) {
	return f.userIDs, f.err
}

func testSchedCfg() config.SchedulerConfig {
	return config.SchedulerConfig{
		TrainIntervalHours:     6,
		GenerateIntervalMins:   30,
		BootstrapTrainDelaySec: 1,
		BootstrapGenDelaySec:   1,
		UserBatchSize:          100,
		WorkerCount:            4,
	}
}

func testRecCfg() config.RecommendConfig {
	return config.RecommendConfig{MinInteractions: 3, RetentionDays: 7}
}

func TestRunGenerationPassProcessesAllUsers(t *testing.T) {
	gen := &fakeGenerator{}
	users := &fakeUserSource{userIDs: []uint{1, 2, 3, 4, 5}}
	s := New(&fakeTrainer{}, gen, users, testSchedCfg(), testRecCfg())

	s.RunGenerationPass(context.Background())

	assert.ElementsMatch(t, []uint{1, 2, 3, 4, 5}, gen.generatedUsers())
	assert.Equal(t, 1, gen.trendCalls)
	assert.Equal(t, 1, gen.pruneCalls)
	require.NotNil(t, s.Status().LastGenerateAt)
}

func TestRunGenerationPassIsolatesUserFailures(t *testing.T) {
	gen := &fakeGenerator{
		generateErr: map[uint]error{
			2: errors.New("boom"),
			4: ml.ErrModelNotTrained,
		},
	}
	users := &fakeUserSource{userIDs: []uint{1, 2, 3, 4, 5}}
	s := New(&fakeTrainer{}, gen, users, testSchedCfg(), testRecCfg())

	s.RunGenerationPass(context.Background())

	assert.ElementsMatch(t, []uint{1, 3, 5}, gen.generatedUsers())
	// 失败不阻断后置清理
	assert.Equal(t, 1, gen.trendCalls)
}

func TestRunTrainingPassSkipsWhenBusy(t *testing.T) {
	trainer := &fakeTrainer{blockFor: 200 * time.Millisecond}
	s := New(trainer, &fakeGenerator{}, &fakeUserSource{}, testSchedCfg(), testRecCfg())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunTrainingPass(context.Background())
	}()

	// 等首轮训练进入运行态后再次触发
	require.Eventually(t, func() bool { return s.Status().TrainRunning }, time.Second, 5*time.Millisecond)
	s.RunTrainingPass(context.Background())
	wg.Wait()

	assert.Equal(t, 1, trainer.callCount())
	assert.False(t, s.Status().TrainRunning)
}

func TestRunTrainingPassInsufficientDataIsNotFatal(t *testing.T) {
	trainer := &fakeTrainer{err: ml.ErrInsufficientData}
	s := New(trainer, &fakeGenerator{}, &fakeUserSource{}, testSchedCfg(), testRecCfg())

	s.RunTrainingPass(context.Background())

	assert.Equal(t, 1, trainer.callCount())
	assert.Nil(t, s.Status().LastTrainAt)
}

func TestStartRunsBootstrapPasses(t *testing.T) {
	cfg := testSchedCfg()
	cfg.BootstrapTrainDelaySec = 0
	cfg.BootstrapGenDelaySec = 0

	trainer := &fakeTrainer{}
	gen := &fakeGenerator{}
	users := &fakeUserSource{userIDs: []uint{7}}
	s := New(trainer, gen, users, cfg, testRecCfg())

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return trainer.callCount() >= 1 && len(gen.generatedUsers()) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, trainer.callCount(), 1)
	assert.Contains(t, gen.generatedUsers(), uint(7))
}

func TestGenerateForUsersHonorsCancellation(t *testing.T) {
	gen := &fakeGenerator{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	userIDs := make([]uint, 1000)
	for i := range userIDs {
		userIDs[i] = uint(i + 1)
	}
	s := New(&fakeTrainer{}, gen, &fakeUserSource{}, testSchedCfg(), testRecCfg())

	done := s.generateForUsers(ctx, userIDs)
	// 取消后很快返回，不要求处理完全部用户
	assert.LessOrEqual(t, done, len(userIDs))
}

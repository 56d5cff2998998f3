package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
	"ghar-khoj-ml-go/pkg/log"
	"ghar-khoj-ml-go/pkg/tasks"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

type fakeInteractionRepo struct {
	searches   []*model.SearchHistory
	views      []*model.ListingView
	favourites []*model.Favourite
	createErr  error
}

func (f *fakeInteractionRepo) CreateSearch(_ context.Context, s *model.SearchHistory) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.searches = append(f.searches, s)
	return nil
}

func (f *fakeInteractionRepo) CreateView(_ context.Context, v *model.ListingView) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.views = append(f.views, v)
	return nil
}

func (f *fakeInteractionRepo) CreateFavourite(_ context.Context, fav *model.Favourite) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.favourites = append(f.favourites, fav)
	return nil
}

func (f *fakeInteractionRepo) FindUserSearches(context.Context, uint, int) ([]*model.SearchHistory, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) FindUserViews(context.Context, uint, int) ([]*repository.ViewedListing, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) FindUserFavourites(context.Context, uint) ([]*model.Favourite, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) ViewedListingIDs(context.Context, uint, int) ([]uint, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) CountRecentInteractions(context.Context, uint, int) (int64, error) {
	return 0, nil
}

func (f *fakeInteractionRepo) FindActiveUserIDs(context.Context, int, int, int) ([]uint, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) AggregateTrendingScores(context.Context, int) ([]*repository.TrendingScore, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) UpdateTrendingCache(context.Context, []repository.TrendingEntry) error {
	return nil
}

func (f *fakeInteractionRepo) TopTrending(context.Context, int) ([]repository.TrendingEntry, error) {
	return nil, nil
}

func TestProcessSearchEvent(t *testing.T) {
	repo := &fakeInteractionRepo{}
	p := NewProcessor(repo)

	occurred := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	err := p.Process(context.Background(), tasks.InteractionEvent{
		EventID:      "evt-1",
		UserID:       1,
		EventType:    tasks.EventTypeSearch,
		SearchQuery:  "2bhk thamel",
		City:         "Kathmandu",
		PropertyType: "apartment",
		MinRent:      ptrF(8000),
		MaxRent:      ptrF(15000),
		Amenities:    []string{"wifi"},
		OccurredAt:   occurred,
	})
	require.NoError(t, err)

	require.Len(t, repo.searches, 1)
	s := repo.searches[0]
	assert.Equal(t, uint(1), s.UserID)
	assert.Equal(t, "Kathmandu", s.City)
	assert.Equal(t, model.StringList{"wifi"}, s.Amenities)
	assert.Equal(t, occurred, s.CreatedAt)
}

func TestProcessViewEvent(t *testing.T) {
	repo := &fakeInteractionRepo{}
	p := NewProcessor(repo)

	err := p.Process(context.Background(), tasks.InteractionEvent{
		EventID:             "evt-2",
		UserID:              1,
		EventType:           tasks.EventTypeView,
		ListingID:           5,
		ViewDurationSeconds: 30,
		DeviceType:          "mobile",
	})
	require.NoError(t, err)

	require.Len(t, repo.views, 1)
	v := repo.views[0]
	assert.Equal(t, uint(5), v.ListingID)
	assert.Equal(t, 30, v.ViewDurationSeconds)
	assert.Equal(t, "mobile", v.DeviceType)
}

func TestProcessFavouriteEvent(t *testing.T) {
	repo := &fakeInteractionRepo{}
	p := NewProcessor(repo)

	err := p.Process(context.Background(), tasks.InteractionEvent{
		EventID:   "evt-3",
		UserID:    2,
		EventType: tasks.EventTypeFavourite,
		ListingID: 8,
	})
	require.NoError(t, err)
	require.Len(t, repo.favourites, 1)
	assert.Equal(t, uint(8), repo.favourites[0].ListingID)
}

func TestProcessDropsMalformedEvents(t *testing.T) {
	repo := &fakeInteractionRepo{}
	p := NewProcessor(repo)

	cases := []tasks.InteractionEvent{
		{EventID: "no-user", EventType: tasks.EventTypeView, ListingID: 1},
		{EventID: "no-listing", UserID: 1, EventType: tasks.EventTypeView},
		{EventID: "unknown-type", UserID: 1, EventType: "click"},
	}
	for _, event := range cases {
		// 坏事件直接丢弃，不返回错误，避免 Kafka 无限重试
		assert.NoError(t, p.Process(context.Background(), event))
	}
	assert.Empty(t, repo.searches)
	assert.Empty(t, repo.views)
	assert.Empty(t, repo.favourites)
}

func TestProcessPropagatesStorageError(t *testing.T) {
	repo := &fakeInteractionRepo{createErr: errors.New("db down")}
	p := NewProcessor(repo)

	err := p.Process(context.Background(), tasks.InteractionEvent{
		EventID:   "evt-4",
		UserID:    1,
		EventType: tasks.EventTypeView,
		ListingID: 5,
	})
	assert.Error(t, err)
}

func ptrF(v float64) *float64 { return &v }

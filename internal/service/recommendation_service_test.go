package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghar-khoj-ml-go/internal/ml"
	"ghar-khoj-ml-go/internal/model"
	"ghar-khoj-ml-go/internal/repository"
)

func newRecommendationFixture(t *testing.T, corpus []*model.Listing, interactions *fakeInteractionRepo) (RecommendationService, *fakeRecRepo, *fakeProfileRepo) {
	t.Helper()
	cfg := testMLConfig()
	listingRepo := &fakeListingRepo{listings: corpus}
	recRepo := newFakeRecRepo()
	profileRepo := newFakeProfileRepo()

	training := NewTrainingService(listingRepo, &fakeVectorRepo{}, nil, cfg)
	if len(corpus) >= minTrainingCorpusSize {
		_, err := training.TrainModels(context.Background())
		require.NoError(t, err)
	}

	profiles := NewProfileService(interactions, profileRepo, cfg.Recommend)
	svc := NewRecommendationService(training, profiles, listingRepo, interactions, recRepo, profileRepo, cfg.Recommend)
	return svc, recRepo, profileRepo
}

func TestGenerateRecommendationsModelNotTrained(t *testing.T) {
	svc, _, _ := newRecommendationFixture(t, nil, &fakeInteractionRepo{})
	_, err := svc.GenerateRecommendations(context.Background(), 1)
	assert.ErrorIs(t, err, ml.ErrModelNotTrained)
}

func TestGenerateContentBasedForActiveUser(t *testing.T) {
	corpus := trainingCorpus(12)
	interactions := &fakeInteractionRepo{
		searches: []*model.SearchHistory{
			{UserID: 1, City: "Kathmandu", PropertyType: "apartment", MinRent: ptrF(6000), MaxRent: ptrF(15000), Bedrooms: ptrI(2)},
			{UserID: 1, City: "Kathmandu", PropertyType: "apartment", Bedrooms: ptrI(2)},
		},
		views: []*repository.ViewedListing{
			{ListingID: 3, City: "Kathmandu", Type: "apartment", RentAmount: 11363},
		},
		viewedIDs: []uint{3},
	}

	svc, recRepo, _ := newRecommendationFixture(t, corpus, interactions)

	result, err := svc.GenerateRecommendations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.RecTypeContentBased, result.RecType)
	assert.Greater(t, result.Generated, 0)

	recs := recRepo.byType(1, model.RecTypeContentBased)
	require.Len(t, recs, result.Generated)
	for _, rec := range recs {
		// 已浏览的房源不进入推荐
		assert.NotEqual(t, uint(3), rec.ListingID)
		// 低于相似度下限的候选被过滤
		assert.GreaterOrEqual(t, rec.SimilarityScore, 0.3)
		assert.NotEmpty(t, rec.Explanation)
	}
}

func TestGenerateContentBasedUpsertPreservesFeedback(t *testing.T) {
	corpus := trainingCorpus(12)
	interactions := &fakeInteractionRepo{
		searches: []*model.SearchHistory{
			{UserID: 1, City: "Kathmandu", PropertyType: "apartment", Bedrooms: ptrI(2)},
			{UserID: 1, City: "Kathmandu", PropertyType: "apartment", Bedrooms: ptrI(2)},
			{UserID: 1, City: "Kathmandu", PropertyType: "apartment", Bedrooms: ptrI(2)},
		},
	}
	svc, recRepo, _ := newRecommendationFixture(t, corpus, interactions)

	result, err := svc.GenerateRecommendations(context.Background(), 1)
	require.NoError(t, err)
	require.Greater(t, result.Generated, 0)

	// 用户点击其中一条后重新生成，点击状态保留
	recs := recRepo.byType(1, model.RecTypeContentBased)
	require.NoError(t, svc.TrackClick(context.Background(), recs[0].ID))

	_, err = svc.GenerateRecommendations(context.Background(), 1)
	require.NoError(t, err)

	refreshed := recRepo.byType(1, model.RecTypeContentBased)
	clicked := 0
	for _, rec := range refreshed {
		if rec.Clicked {
			clicked++
		}
	}
	assert.Equal(t, 1, clicked)
	// 没有产生重复行
	assert.Len(t, refreshed, result.Generated)
}

func TestGenerateColdStartForNewUser(t *testing.T) {
	corpus := trainingCorpus(12)
	svc, recRepo, _ := newRecommendationFixture(t, corpus, &fakeInteractionRepo{})

	result, err := svc.GenerateRecommendations(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, model.RecTypeColdStartGeo, result.RecType)
	assert.Greater(t, result.Generated, 0)

	for _, rec := range recRepo.byType(42, model.RecTypeColdStartGeo) {
		assert.GreaterOrEqual(t, rec.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, rec.ConfidenceScore, 1.0)
		assert.Contains(t, rec.Explanation, "Avg rent")
	}
}

func TestGenerateTrendingFallbackWithoutClusterer(t *testing.T) {
	// 5 条语料：TF-IDF 可训练但聚类跳过，冷启动无产出时落到热门榜
	corpus := trainingCorpus(12)[:5]
	interactions := &fakeInteractionRepo{
		trending: []repository.TrendingEntry{
			{ListingID: 1, Score: 120},
			{ListingID: 2, Score: 50},
		},
	}
	svc, recRepo, _ := newRecommendationFixture(t, corpus, interactions)

	result, err := svc.GenerateRecommendations(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, model.RecTypeTrending, result.RecType)
	assert.Equal(t, 2, result.Generated)

	byListing := make(map[uint]*model.Recommendation)
	for _, rec := range recRepo.byType(9, model.RecTypeTrending) {
		byListing[rec.ListingID] = rec
	}
	// 分数按 100 折算并封顶 0.95
	assert.InDelta(t, 0.95, byListing[1].ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.50, byListing[2].ConfidenceScore, 1e-9)
}

func TestUpdateTrendingScoring(t *testing.T) {
	corpus := trainingCorpus(12)
	interactions := &fakeInteractionRepo{
		trendScores: []*repository.TrendingScore{
			{ListingID: 1, Views: 10, Favourites: 4},
			{ListingID: 2, Views: 2, Favourites: 0},
		},
	}
	svc, _, _ := newRecommendationFixture(t, corpus, interactions)

	require.NoError(t, svc.UpdateTrending(context.Background()))

	require.Len(t, interactions.trending, 2)
	// views*0.5 + favourites*1.5
	assert.Equal(t, 11.0, interactions.trending[0].Score)
	assert.Equal(t, 1.0, interactions.trending[1].Score)
}

func TestTrackDismissHidesRecommendation(t *testing.T) {
	corpus := trainingCorpus(12)
	interactions := &fakeInteractionRepo{
		searches: []*model.SearchHistory{
			{UserID: 1, Bedrooms: ptrI(2)},
			{UserID: 1, Bedrooms: ptrI(2)},
			{UserID: 1, Bedrooms: ptrI(2)},
		},
	}
	svc, _, _ := newRecommendationFixture(t, corpus, interactions)

	_, err := svc.GenerateRecommendations(context.Background(), 1)
	require.NoError(t, err)

	recs, err := svc.GetRecommendationsForUser(context.Background(), 1, 0, "")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	before := len(recs)

	require.NoError(t, svc.TrackDismiss(context.Background(), recs[0].ID))

	after, err := svc.GetRecommendationsForUser(context.Background(), 1, 0, "")
	require.NoError(t, err)
	assert.Len(t, after, before-1)
}

func TestTrackClickUnknownRecommendation(t *testing.T) {
	svc, _, _ := newRecommendationFixture(t, trainingCorpus(12), &fakeInteractionRepo{})
	err := svc.TrackClick(context.Background(), 9999)
	assert.Error(t, err)
}

package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/lolfu/winrate-engine/internal/crawler"
	"github.com/lolfu/winrate-engine/internal/models"
)

// MockRecommendationService implements logic.RecommendationService for testing
type MockRecommendationService struct {
	RecommendFunc func(ctx context.Context, name string) (*models.Recommendations, error)
	RankingsFunc  func(tier string, pos models.Position, minSamples uint64) []models.ChampionEstimate
	Matches       uint64
}

func (m *MockRecommendationService) Recommend(ctx context.Context, name string) (*models.Recommendations, error) {
	if m.RecommendFunc != nil {
		return m.RecommendFunc(ctx, name)
	}
	return &models.Recommendations{PlayerName: name}, nil
}

func (m *MockRecommendationService) Rankings(tier string, pos models.Position, minSamples uint64) []models.ChampionEstimate {
	if m.RankingsFunc != nil {
		return m.RankingsFunc(tier, pos, minSamples)
	}
	return nil
}

func (m *MockRecommendationService) MatchCount() uint64 { return m.Matches }

// MockTTLStore implements cache.TTLStore with a settable ping result
type MockTTLStore struct {
	PingErr error
}

func (m *MockTTLStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (m *MockTTLStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (m *MockTTLStore) Ping(context.Context) error { return m.PingErr }

type mockStatus struct{ status crawler.Status }

func (m mockStatus) Status() crawler.Status { return m.status }

var errDown = errors.New("connection refused")

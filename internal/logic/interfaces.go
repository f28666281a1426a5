package logic

import (
	"context"

	"github.com/lolfu/winrate-engine/internal/models"
)

// PlayerSource resolves the remote entities a recommendation needs.
// *fetcher.Fetcher implements it.
type PlayerSource interface {
	FetchPlayerByName(ctx context.Context, name string) (models.Summoner, error)
	FetchPlayerTiers(ctx context.Context, playerIDs []int64) (map[int64]string, error)
	FetchMatchList(ctx context.Context, playerID int64) (*models.MatchList, error)
	FetchMatch(ctx context.Context, matchID int64) (*models.MatchRecord, error)
}

// RecommendationService ranks champions for players and for the population.
type RecommendationService interface {
	Recommend(ctx context.Context, playerName string) (*models.Recommendations, error)
	Rankings(tier string, position models.Position, minSamples uint64) []models.ChampionEstimate
	MatchCount() uint64
}

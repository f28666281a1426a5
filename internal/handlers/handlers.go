package handlers

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lolfu/winrate-engine/internal/cache"
	"github.com/lolfu/winrate-engine/internal/crawler"
	"github.com/lolfu/winrate-engine/internal/logic"
)

// StatusSource reports the progress of a running crawl.
type StatusSource interface {
	Status() crawler.Status
}

type Config struct {
	Recommendations logic.RecommendationService
	TTL             cache.TTLStore
	Crawl           StatusSource
	MinSamples      int
	Logger          *zap.Logger
}

type Handler struct {
	recommendations logic.RecommendationService
	ttl             cache.TTLStore
	crawl           StatusSource
	minSamples      int
	logger          *zap.SugaredLogger
	validator       *validator.Validate
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		recommendations: cfg.Recommendations,
		ttl:             cfg.TTL,
		crawl:           cfg.Crawl,
		minSamples:      cfg.MinSamples,
		logger:          cfg.Logger.Sugar(),
		validator:       validator.New(),
	}
}

package dto

import (
	"elo-sync/internal/domain/rank"
	"elo-sync/internal/usecase/header"
)

type RatingResponse struct {
	Rating          int       `json:"rating"`
	Rank            rank.Tier `json:"rank"`
	Progress        float64   `json:"progress"`
	ProgressPercent float64   `json:"progress_percent"`
}

func NewRatingResponse(v header.View) RatingResponse {
	return RatingResponse{
		Rating:          v.Rating,
		Rank:            v.Rank,
		Progress:        v.Progress,
		ProgressPercent: v.ProgressPercent,
	}
}

type TierListResponse struct {
	Tiers []rank.Tier `json:"tiers"`
}

// Package service declares the narrow collaborator surfaces the match
// engine consumes. Account storage, session issuance and social features
// live behind these interfaces; the engine never reaches past them.
package service

import (
	"context"

	"pong-duel/server/internal/match"
)

// Profile carries display-only labels for broadcast decoration.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// MatchService creates and fetches match records.
type MatchService interface {
	CreateMatch(ctx context.Context, p1ID, p2ID string) (match.Match, error)
	GetMatch(ctx context.Context, matchID string) (match.Match, bool, error)
}

// ResultRecorder persists a finished match's outcome. RecordResult receives
// the full terminal record so the stored match becomes terminal too; a
// recorded match must never come back as joinable.
type ResultRecorder interface {
	RecordResult(ctx context.Context, result match.Match) error
	AppendRecentMatch(ctx context.Context, playerID, matchID string) error
}

// ProfileResolver resolves human-readable labels for a player id. Used only
// for broadcast decoration, never for authorization.
type ProfileResolver interface {
	ResolveDisplayProfile(ctx context.Context, userID string) (Profile, error)
}

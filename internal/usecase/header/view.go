package header

import (
	"context"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"elo-sync/internal/domain/rank"
	"elo-sync/internal/domain/user"
)

type AvatarKind string

const (
	AvatarImage       AvatarKind = "image"
	AvatarEmoji       AvatarKind = "emoji"
	AvatarInitial     AvatarKind = "initial"
	AvatarPlaceholder AvatarKind = "placeholder"
)

const (
	placeholderAvatar = "U"
	defaultAvatarTag  = "default"
)

type Avatar struct {
	Kind  AvatarKind `json:"kind"`
	Value string     `json:"value"`
}

// View is everything a page header needs to draw the user block.
type View struct {
	LoggedIn        bool      `json:"logged_in"`
	Name            string    `json:"name,omitempty"`
	Avatar          Avatar    `json:"avatar"`
	Rating          int       `json:"rating"`
	RatingLabel     string    `json:"rating_label"`
	Rank            rank.Tier `json:"rank"`
	Progress        float64   `json:"progress"`
	ProgressPercent float64   `json:"progress_percent"`
	// RankKeys lists every simple tier class so renderers can strip stale ones.
	RankKeys []string `json:"rank_keys"`
}

func AvatarFor(rec user.Record, loggedIn bool) Avatar {
	if !loggedIn {
		return Avatar{Kind: AvatarPlaceholder, Value: placeholderAvatar}
	}
	if img := strings.TrimSpace(rec.AvatarImage()); img != "" {
		return Avatar{Kind: AvatarImage, Value: img}
	}
	if a := strings.TrimSpace(rec.Avatar()); a != "" && a != defaultAvatarTag {
		return Avatar{Kind: AvatarEmoji, Value: a}
	}
	if name := strings.TrimSpace(rec.Name()); name != "" {
		r, _ := utf8.DecodeRuneInString(name)
		return Avatar{Kind: AvatarInitial, Value: string(unicode.ToUpper(r))}
	}
	return Avatar{Kind: AvatarPlaceholder, Value: placeholderAvatar}
}

func Build(rec user.Record, loggedIn bool, rating int, table rank.Table) View {
	tier := table.Classify(rating)
	progress := rank.Progress(rating, tier)
	v := View{
		LoggedIn:        loggedIn,
		Avatar:          AvatarFor(rec, loggedIn),
		Rating:          rating,
		RatingLabel:     strconv.Itoa(rating) + " ELO",
		Rank:            tier,
		Progress:        progress,
		ProgressPercent: rank.Percent(progress),
		RankKeys:        table.Keys(),
	}
	if loggedIn {
		v.Name = rec.Name()
	}
	return v
}

type ratingSource interface {
	Rating(ctx context.Context) int
	User(ctx context.Context) (user.Record, bool)
}

type Service struct {
	store ratingSource
	table rank.Table
}

func NewService(store ratingSource, table rank.Table) *Service {
	return &Service{store: store, table: table}
}

func (s *Service) Table() rank.Table {
	return s.table
}

// Current reads the slot once for identity and once for the rating.
func (s *Service) Current(ctx context.Context) View {
	rec, ok := s.store.User(ctx)
	return Build(rec, ok, s.store.Rating(ctx), s.table)
}

// ForRating builds the view for a rating delivered with a notification, so
// the rating itself is not read back.
func (s *Service) ForRating(ctx context.Context, rating int) View {
	rec, ok := s.store.User(ctx)
	return Build(rec, ok, rating, s.table)
}

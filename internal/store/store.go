package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ecotrac/ecotrac/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid id")
	ErrAlreadyJoined = errors.New("already joined")
)

// Tip sort orders.
const (
	SortNatural = ""
	SortNew     = "new"
)

type TipListOpts struct {
	Sort string
}

type Store interface {
	ChallengeStore
	ActivityStore
	TipStore
	Ping(ctx context.Context) error
	Close() error
}

type ChallengeStore interface {
	ListChallenges(ctx context.Context) ([]model.Document, error)
	GetChallenge(ctx context.Context, id string) (model.Document, error)
	// GetChallengesByIDs resolves ids in one lookup. Unknown or malformed
	// ids are skipped.
	GetChallengesByIDs(ctx context.Context, ids []string) ([]model.Document, error)
	CreateChallenge(ctx context.Context, doc model.Document) (model.InsertResult, error)
	UpdateChallenge(ctx context.Context, id string, fields model.Document) (model.UpdateResult, error)
	DeleteChallenge(ctx context.Context, id string) (model.DeleteResult, error)
	IncrementParticipants(ctx context.Context, id string, delta int) error
}

type ActivityStore interface {
	// ClaimJoin inserts a join activity unless one already exists for the
	// same email and challenge, in which case it returns ErrAlreadyJoined.
	ClaimJoin(ctx context.Context, activity *model.UserActivity) error
	CreateActivity(ctx context.Context, activity *model.UserActivity) error
	ListActivitiesByEmail(ctx context.Context, email string) ([]model.UserActivity, error)
	CreateJoinedChallenge(ctx context.Context, jc *model.JoinedChallenge) error
	ListJoinedChallenges(ctx context.Context) ([]model.JoinedChallenge, error)
}

type TipStore interface {
	CreateTip(ctx context.Context, tip model.Document) (model.InsertResult, error)
	ListTips(ctx context.Context, opts TipListOpts) ([]model.Document, error)
}

// NewID returns a fresh document identifier in the 24-char hex form used by
// every backend.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// IsNotFound reports whether err means the addressed document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidID)
}

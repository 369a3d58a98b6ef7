package model

import "time"

// Activity types recorded in the user activity log.
const (
	ActivityJoin = "join"
	ActivityTip  = "tip"
)

// Document is a free-form record as stored and returned by the API.
// The store-generated identifier lives under "_id" as a hex string.
type Document map[string]any

func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// Fields returns a shallow copy of d without the identifier.
func (d Document) Fields() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}

func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

type UserActivity struct {
	ID          string    `json:"_id"`
	ChallengeID string    `json:"challengeId,omitempty"`
	Email       string    `json:"email"`
	JoinedAt    time.Time `json:"joinedAt"`
	Type        string    `json:"type,omitempty"`
	TipID       string    `json:"tipId,omitempty"`
	Title       string    `json:"title,omitempty"`
}

type JoinedChallenge struct {
	ID          string    `json:"_id"`
	ChallengeID string    `json:"challengeId"`
	Email       string    `json:"email"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// ActivityView is an activity with its referenced challenge attached.
// Challenge is nil when the reference no longer resolves.
type ActivityView struct {
	UserActivity
	Challenge Document `json:"challenge"`
}

type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

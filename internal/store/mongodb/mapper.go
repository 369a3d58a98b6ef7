package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ecotrac/ecotrac/internal/model"
)

type activityRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ChallengeID string             `bson:"challengeId,omitempty"`
	Email       string             `bson:"email"`
	JoinedAt    time.Time          `bson:"joinedAt"`
	Type        string             `bson:"type,omitempty"`
	TipID       string             `bson:"tipId,omitempty"`
	Title       string             `bson:"title,omitempty"`
}

type joinedRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ChallengeID string             `bson:"challengeId"`
	Email       string             `bson:"email"`
	JoinedAt    time.Time          `bson:"joinedAt"`
}

func activityToRecord(a model.UserActivity) activityRecord {
	return activityRecord{
		ChallengeID: a.ChallengeID,
		Email:       a.Email,
		JoinedAt:    a.JoinedAt,
		Type:        a.Type,
		TipID:       a.TipID,
		Title:       a.Title,
	}
}

func (r activityRecord) toModel() model.UserActivity {
	typ := r.Type
	if typ == "" {
		// Records written before activities were typed are joins.
		typ = model.ActivityJoin
	}
	return model.UserActivity{
		ID:          r.ID.Hex(),
		ChallengeID: r.ChallengeID,
		Email:       r.Email,
		JoinedAt:    r.JoinedAt.UTC(),
		Type:        typ,
		TipID:       r.TipID,
		Title:       r.Title,
	}
}

func joinedToRecord(jc model.JoinedChallenge) joinedRecord {
	return joinedRecord{
		ChallengeID: jc.ChallengeID,
		Email:       jc.Email,
		JoinedAt:    jc.JoinedAt,
	}
}

func (r joinedRecord) toModel() model.JoinedChallenge {
	return model.JoinedChallenge{
		ID:          r.ID.Hex(),
		ChallengeID: r.ChallengeID,
		Email:       r.Email,
		JoinedAt:    r.JoinedAt.UTC(),
	}
}

// toDocument turns a decoded BSON document into plain Go values so it
// encodes to JSON the same way a sqlite-backed document does.
func toDocument(m primitive.M) model.Document {
	out := make(model.Document, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC()
	case primitive.Decimal128:
		return x.String()
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalize(vv)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = normalize(vv)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}

package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"
)

func TestNormalize(t *testing.T) {
	oid := primitive.NewObjectID()
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	doc := toDocument(primitive.M{
		"_id":       oid,
		"createdAt": primitive.NewDateTimeFromTime(when),
		"meta":      primitive.D{{Key: "owner", Value: oid}},
		"tags":      primitive.A{"water", primitive.M{"n": int32(1)}},
	})

	assert.Equal(t, oid.Hex(), doc.ID())
	assert.Equal(t, when, doc["createdAt"])
	assert.Equal(t, map[string]any{"owner": oid.Hex()}, doc["meta"])
	assert.Equal(t, []any{"water", map[string]any{"n": int32(1)}}, doc["tags"])
}

func TestActivityRecordDefaultsToJoin(t *testing.T) {
	rec := activityRecord{ID: primitive.NewObjectID(), ChallengeID: "c1", Email: "a@example.com"}
	assert.Equal(t, model.ActivityJoin, rec.toModel().Type)
}

func TestChallengeOperations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get found", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.challenges", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "title", Value: "Plant a tree"},
			{Key: "participants", Value: int32(3)},
		}))

		doc, err := st.GetChallenge(ctx, oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), doc.ID())
		assert.Equal(mt, "Plant a tree", doc.String("title"))
		assert.Equal(mt, int32(3), doc["participants"])
	})

	mt.Run("get missing", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.challenges", mtest.FirstBatch))

		_, err := st.GetChallenge(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("get malformed id", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		_, err := st.GetChallenge(ctx, "nope")
		assert.ErrorIs(mt, err, store.ErrInvalidID)
		assert.True(mt, store.IsNotFound(err))
	})

	mt.Run("create", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		res, err := st.CreateChallenge(ctx, model.Document{"_id": "mine", "title": "No car day"})
		require.NoError(mt, err)
		assert.True(mt, res.Acknowledged)
		assert.True(mt, store.ValidID(res.InsertedID))
	})

	mt.Run("update unmatched", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		_, err := st.UpdateChallenge(ctx, primitive.NewObjectID().Hex(), model.Document{"title": "x"})
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("update matched", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		res, err := st.UpdateChallenge(ctx, primitive.NewObjectID().Hex(), model.Document{"title": "x"})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.MatchedCount)
		assert.Equal(mt, int64(1), res.ModifiedCount)
	})

	mt.Run("delete", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		id := primitive.NewObjectID().Hex()
		res, err := st.DeleteChallenge(ctx, id)
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.DeletedCount)

		_, err = st.DeleteChallenge(ctx, id)
		assert.ErrorIs(mt, err, store.ErrNotFound)
	})

	mt.Run("batched lookup skips malformed ids", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.challenges", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: a}, {Key: "title", Value: "A"}},
			bson.D{{Key: "_id", Value: b}, {Key: "title", Value: "B"}},
		))

		docs, err := st.GetChallengesByIDs(ctx, []string{a.Hex(), "bad", b.Hex(), a.Hex()})
		require.NoError(mt, err)
		assert.Len(mt, docs, 2)

		docs, err = st.GetChallengesByIDs(ctx, []string{"bad"})
		require.NoError(mt, err)
		assert.Empty(mt, docs)
	})
}

// noLegacyJoin answers the untyped-join lookup ClaimJoin runs before upserting.
func noLegacyJoin() bson.D {
	return mtest.CreateCursorResponse(0, "ecoTracdb.userActivities", mtest.FirstBatch)
}

func TestClaimJoin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("first join upserts", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(noLegacyJoin(), mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{
				bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: primitive.NewObjectID()}},
			}},
		))

		activity := model.UserActivity{ChallengeID: "c1", Email: "a@example.com", JoinedAt: time.Now()}
		require.NoError(mt, st.ClaimJoin(ctx, &activity))
		assert.True(mt, store.ValidID(activity.ID))
		assert.Equal(mt, model.ActivityJoin, activity.Type)
	})

	mt.Run("existing join matches", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(noLegacyJoin(), mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		activity := model.UserActivity{ChallengeID: "c1", Email: "a@example.com", JoinedAt: time.Now()}
		assert.ErrorIs(mt, st.ClaimJoin(ctx, &activity), store.ErrAlreadyJoined)
	})

	mt.Run("racing join hits unique index", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(noLegacyJoin(), mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		activity := model.UserActivity{ChallengeID: "c1", Email: "a@example.com", JoinedAt: time.Now()}
		assert.ErrorIs(mt, st.ClaimJoin(ctx, &activity), store.ErrAlreadyJoined)
	})

	mt.Run("untyped legacy join matches", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "ecoTracdb.userActivities", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}},
		))

		activity := model.UserActivity{ChallengeID: "c1", Email: "a@example.com", JoinedAt: time.Now()}
		assert.ErrorIs(mt, st.ClaimJoin(ctx, &activity), store.ErrAlreadyJoined)
		assert.Empty(mt, activity.ID, "no upsert may follow a legacy match")
	})
}

func TestListActivitiesByEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes typed and legacy records", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		joined := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.userActivities", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "email", Value: "a@example.com"},
				{Key: "type", Value: model.ActivityTip},
				{Key: "tipId", Value: "t1"},
				{Key: "joinedAt", Value: joined},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "challengeId", Value: "c1"},
				{Key: "email", Value: "a@example.com"},
				{Key: "joinedAt", Value: joined},
			},
		))

		activities, err := st.ListActivitiesByEmail(context.Background(), "a@example.com")
		require.NoError(mt, err)
		require.Len(mt, activities, 2)
		assert.Equal(mt, model.ActivityTip, activities[0].Type)
		assert.Equal(mt, "t1", activities[0].TipID)
		assert.Equal(mt, model.ActivityJoin, activities[1].Type)
		assert.Equal(mt, "c1", activities[1].ChallengeID)
		assert.Equal(mt, joined, activities[1].JoinedAt)
	})
}

func TestTips(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create and list", func(mt *mtest.T) {
		st := New(mt.DB, time.Second)
		created := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "test.tips", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "title", Value: "Cold wash"},
				{Key: "upvotes", Value: int32(0)},
				{Key: "createdAt", Value: created},
			}),
		)

		res, err := st.CreateTip(ctx, model.Document{"title": "Cold wash", "upvotes": 0, "createdAt": created})
		require.NoError(mt, err)
		assert.True(mt, store.ValidID(res.InsertedID))

		tips, err := st.ListTips(ctx, store.TipListOpts{Sort: store.SortNew})
		require.NoError(mt, err)
		require.Len(mt, tips, 1)
		assert.Equal(mt, created, tips[0]["createdAt"])
	})
}

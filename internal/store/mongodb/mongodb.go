// Package mongodb implements store.Store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"
)

const (
	challengesCollection       = "challenges"
	activitiesCollection       = "userActivities"
	joinedChallengesCollection = "joinedChallenges"
	tipsCollection             = "tips"

	joinIndexName = "uniq_email_challenge_join"
)

type Options struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

// Open connects with the stable server API (v1, strict) and makes sure the
// join uniqueness index exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerAPIOptions(serverAPI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := New(client.Database(opts.Database), opts.Timeout)
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. The caller keeps ownership of the
// underlying client.
func New(db *mongo.Database, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.db.Collection(activitiesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "challengeId", Value: 1}},
			Options: options.Index().
				SetName(joinIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "type", Value: model.ActivityJoin}}),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "joinedAt", Value: -1}},
			Options: options.Index().SetName("email_joinedAt"),
		},
	})
	if err != nil {
		return fmt.Errorf("create activity indexes: %w", err)
	}
	_, err = s.db.Collection(tipsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("createdAt_desc"),
	})
	if err != nil {
		return fmt.Errorf("create tip indexes: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) ListChallenges(ctx context.Context) ([]model.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	docs, err := s.findDocuments(ctx, s.db.Collection(challengesCollection), bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return docs, nil
}

func (s *Store) GetChallenge(ctx context.Context, id string) (model.Document, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var raw bson.M
	err = s.db.Collection(challengesCollection).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return toDocument(raw), nil
}

func (s *Store) GetChallengesByIDs(ctx context.Context, ids []string) ([]model.Document, error) {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}}
	docs, err := s.findDocuments(ctx, s.db.Collection(challengesCollection), filter)
	if err != nil {
		return nil, fmt.Errorf("lookup challenges: %w", err)
	}
	return docs, nil
}

func (s *Store) CreateChallenge(ctx context.Context, doc model.Document) (model.InsertResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	oid, err := s.insertDocument(ctx, s.db.Collection(challengesCollection), doc)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("insert challenge: %w", err)
	}
	return model.InsertResult{Acknowledged: true, InsertedID: oid.Hex()}, nil
}

func (s *Store) UpdateChallenge(ctx context.Context, id string, fields model.Document) (model.UpdateResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.UpdateResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	coll := s.db.Collection(challengesCollection)
	filter := bson.D{{Key: "_id", Value: oid}}

	set := bson.M(fields.Fields())
	if len(set) == 0 {
		// An empty $set is rejected by the server; report the match only.
		err := coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.UpdateResult{Acknowledged: true}, store.ErrNotFound
		}
		if err != nil {
			return model.UpdateResult{}, fmt.Errorf("update challenge: %w", err)
		}
		return model.UpdateResult{Acknowledged: true, MatchedCount: 1}, nil
	}

	res, err := coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("update challenge: %w", err)
	}
	result := model.UpdateResult{Acknowledged: true, MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}
	if res.MatchedCount == 0 {
		return result, store.ErrNotFound
	}
	return result, nil
}

func (s *Store) DeleteChallenge(ctx context.Context, id string) (model.DeleteResult, error) {
	oid, err := objectID(id)
	if err != nil {
		return model.DeleteResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(challengesCollection).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete challenge: %w", err)
	}
	result := model.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}
	if res.DeletedCount == 0 {
		return result, store.ErrNotFound
	}
	return result, nil
}

func (s *Store) IncrementParticipants(ctx context.Context, id string, delta int) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.Collection(challengesCollection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "participants", Value: delta}}}},
	)
	if err != nil {
		return fmt.Errorf("increment participants: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClaimJoin upserts with $setOnInsert so the existence check and the insert
// are a single server-side operation. Two racing upserts that both miss the
// filter collide on the partial unique index instead. Join records written
// before activities carried a type are outside that index and are checked
// first.
func (s *Store) ClaimJoin(ctx context.Context, activity *model.UserActivity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	coll := s.db.Collection(activitiesCollection)

	legacy := bson.D{
		{Key: "email", Value: activity.Email},
		{Key: "challengeId", Value: activity.ChallengeID},
		{Key: "type", Value: bson.D{{Key: "$exists", Value: false}}},
	}
	err := coll.FindOne(ctx, legacy, options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if err == nil {
		return store.ErrAlreadyJoined
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("claim join: %w", err)
	}

	oid := primitive.NewObjectID()
	filter := bson.D{
		{Key: "email", Value: activity.Email},
		{Key: "challengeId", Value: activity.ChallengeID},
		{Key: "type", Value: model.ActivityJoin},
	}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "_id", Value: oid},
		{Key: "joinedAt", Value: activity.JoinedAt},
	}}}
	res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("claim join: %w", err)
	}
	if res.UpsertedCount == 0 {
		return store.ErrAlreadyJoined
	}
	activity.ID = oid.Hex()
	activity.Type = model.ActivityJoin
	return nil
}

func (s *Store) CreateActivity(ctx context.Context, activity *model.UserActivity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rec := activityToRecord(*activity)
	rec.ID = primitive.NewObjectID()
	if _, err := s.db.Collection(activitiesCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	activity.ID = rec.ID.Hex()
	return nil
}

func (s *Store) ListActivitiesByEmail(ctx context.Context, email string) ([]model.UserActivity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "joinedAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.db.Collection(activitiesCollection).Find(ctx, bson.D{{Key: "email", Value: email}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	var recs []activityRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	out := make([]model.UserActivity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toModel())
	}
	return out, nil
}

func (s *Store) CreateJoinedChallenge(ctx context.Context, jc *model.JoinedChallenge) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rec := joinedToRecord(*jc)
	rec.ID = primitive.NewObjectID()
	if _, err := s.db.Collection(joinedChallengesCollection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert joined challenge: %w", err)
	}
	jc.ID = rec.ID.Hex()
	return nil
}

func (s *Store) ListJoinedChallenges(ctx context.Context) ([]model.JoinedChallenge, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.db.Collection(joinedChallengesCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list joined challenges: %w", err)
	}
	var recs []joinedRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode joined challenges: %w", err)
	}
	out := make([]model.JoinedChallenge, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toModel())
	}
	return out, nil
}

func (s *Store) CreateTip(ctx context.Context, tip model.Document) (model.InsertResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	oid, err := s.insertDocument(ctx, s.db.Collection(tipsCollection), tip)
	if err != nil {
		return model.InsertResult{}, fmt.Errorf("insert tip: %w", err)
	}
	return model.InsertResult{Acknowledged: true, InsertedID: oid.Hex()}, nil
}

func (s *Store) ListTips(ctx context.Context, opts store.TipListOpts) ([]model.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	findOpts := options.Find()
	if opts.Sort == store.SortNew {
		findOpts.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	}
	docs, err := s.findDocuments(ctx, s.db.Collection(tipsCollection), bson.D{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	return docs, nil
}

func (s *Store) findDocuments(ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]model.Document, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, toDocument(m))
	}
	return docs, nil
}

// insertDocument stores doc under a fresh ObjectID, dropping any client
// supplied _id.
func (s *Store) insertDocument(ctx context.Context, coll *mongo.Collection, doc model.Document) (primitive.ObjectID, error) {
	oid := primitive.NewObjectID()
	m := bson.M(doc.Fields())
	m["_id"] = oid
	if _, err := coll.InsertOne(ctx, m); err != nil {
		return primitive.NilObjectID, err
	}
	return oid, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", store.ErrInvalidID, id)
	}
	return oid, nil
}

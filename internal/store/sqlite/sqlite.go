package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store keeps documents as JSON bodies in sqlite tables. Join activities
// carry a partial unique index so a user can claim a challenge once.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// lookupBatchSize bounds the IN list of a single lookup, well under
// SQLITE_MAX_VARIABLE_NUMBER on older builds.
const lookupBatchSize = 500

func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, timeout), nil
}

// New wraps an already prepared database without touching its schema.
func New(db *sql.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// dsn sets busy_timeout through the driver's _pragma parameter so every
// pooled connection waits on a locked database instead of failing.
func dsn(path string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func applySchema(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	// m.Close would close db as well, so only the source is released.
	defer src.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
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
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM challenges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return scanDocuments(rows)
}

func (s *Store) GetChallenge(ctx context.Context, id string) (model.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := s.db.QueryRowContext(ctx, `SELECT id, body FROM challenges WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *Store) GetChallengesByIDs(ctx context.Context, ids []string) ([]model.Document, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var docs []model.Document
	for start := 0; start < len(ids); start += lookupBatchSize {
		batch := ids[start:min(start+lookupBatchSize, len(ids))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := `SELECT id, body FROM challenges WHERE id IN (` + placeholders(len(batch)) + `) ORDER BY rowid`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("lookup challenges: %w", err)
		}
		found, err := scanDocuments(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

func (s *Store) CreateChallenge(ctx context.Context, doc model.Document) (model.InsertResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := store.NewID()
	body, err := json.Marshal(doc.Fields())
	if err != nil {
		return model.InsertResult{}, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO challenges (id, body, created_at) VALUES (?, ?, ?)`,
		id, string(body), time.Now().UnixNano()); err != nil {
		return model.InsertResult{}, fmt.Errorf("insert challenge: %w", err)
	}
	return model.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// UpdateChallenge merges fields into the stored body, top-level keys
// replacing existing ones.
func (s *Store) UpdateChallenge(ctx context.Context, id string, fields model.Document) (model.UpdateResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UpdateResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT body FROM challenges WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UpdateResult{Acknowledged: true}, store.ErrNotFound
	}
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("load challenge: %w", err)
	}
	current := model.Document{}
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return model.UpdateResult{}, fmt.Errorf("decode challenge %s: %w", id, err)
	}
	for k, v := range fields.Fields() {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return model.UpdateResult{}, err
	}
	result := model.UpdateResult{Acknowledged: true, MatchedCount: 1}
	if normalizedJSON(raw) == string(merged) {
		return result, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE challenges SET body = ? WHERE id = ?`, string(merged), id); err != nil {
		return model.UpdateResult{}, fmt.Errorf("update challenge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.UpdateResult{}, err
	}
	result.ModifiedCount = 1
	return result, nil
}

func (s *Store) DeleteChallenge(ctx context.Context, id string) (model.DeleteResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete challenge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.DeleteResult{}, err
	}
	if n == 0 {
		return model.DeleteResult{Acknowledged: true}, store.ErrNotFound
	}
	return model.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

func (s *Store) IncrementParticipants(ctx context.Context, id string, delta int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
UPDATE challenges
SET body = json_set(body, '$.participants', COALESCE(json_extract(body, '$.participants'), 0) + ?)
WHERE id = ?
`, delta, id)
	if err != nil {
		return fmt.Errorf("increment participants: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ClaimJoin(ctx context.Context, activity *model.UserActivity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := store.NewID()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO user_activities (id, challenge_id, email, type, joined_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING
`, id, activity.ChallengeID, activity.Email, model.ActivityJoin, activity.JoinedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("claim join: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyJoined
	}
	activity.ID = id
	activity.Type = model.ActivityJoin
	return nil
}

func (s *Store) CreateActivity(ctx context.Context, activity *model.UserActivity) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := store.NewID()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO user_activities (id, challenge_id, email, type, tip_id, title, joined_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, id, nullIfEmpty(activity.ChallengeID), activity.Email, activity.Type, nullIfEmpty(activity.TipID), nullIfEmpty(activity.Title), activity.JoinedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	activity.ID = id
	return nil
}

func (s *Store) ListActivitiesByEmail(ctx context.Context, email string) ([]model.UserActivity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, challenge_id, email, type, tip_id, title, joined_at
FROM user_activities
WHERE email = ?
ORDER BY joined_at DESC, rowid DESC
`, email)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.UserActivity
	for rows.Next() {
		var (
			a                         model.UserActivity
			challengeID, tipID, title sql.NullString
			joinedAt                  int64
		)
		if err := rows.Scan(&a.ID, &challengeID, &a.Email, &a.Type, &tipID, &title, &joinedAt); err != nil {
			return nil, err
		}
		a.ChallengeID = challengeID.String
		a.TipID = tipID.String
		a.Title = title.String
		a.JoinedAt = time.Unix(0, joinedAt).UTC()
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Store) CreateJoinedChallenge(ctx context.Context, jc *model.JoinedChallenge) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := store.NewID()
	_, err := s.db.ExecContext(ctx, `INSERT INTO joined_challenges (id, challenge_id, email, joined_at) VALUES (?, ?, ?, ?)`,
		id, jc.ChallengeID, jc.Email, jc.JoinedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert joined challenge: %w", err)
	}
	jc.ID = id
	return nil
}

func (s *Store) ListJoinedChallenges(ctx context.Context) ([]model.JoinedChallenge, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT id, challenge_id, email, joined_at FROM joined_challenges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list joined challenges: %w", err)
	}
	defer rows.Close()

	var out []model.JoinedChallenge
	for rows.Next() {
		var (
			jc       model.JoinedChallenge
			joinedAt int64
		)
		if err := rows.Scan(&jc.ID, &jc.ChallengeID, &jc.Email, &joinedAt); err != nil {
			return nil, err
		}
		jc.JoinedAt = time.Unix(0, joinedAt).UTC()
		out = append(out, jc)
	}
	return out, rows.Err()
}

func (s *Store) CreateTip(ctx context.Context, tip model.Document) (model.InsertResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := store.NewID()
	createdAt := time.Now()
	if t, ok := tip["createdAt"].(time.Time); ok {
		createdAt = t
	}
	body, err := json.Marshal(tip.Fields())
	if err != nil {
		return model.InsertResult{}, err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tips (id, body, created_at) VALUES (?, ?, ?)`,
		id, string(body), createdAt.UnixNano()); err != nil {
		return model.InsertResult{}, fmt.Errorf("insert tip: %w", err)
	}
	return model.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (s *Store) ListTips(ctx context.Context, opts store.TipListOpts) ([]model.Document, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	order := "rowid"
	if opts.Sort == store.SortNew {
		order = "created_at DESC, rowid DESC"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM tips ORDER BY `+order)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	return scanDocuments(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (model.Document, error) {
	var id, body string
	if err := row.Scan(&id, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	doc := model.Document{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["_id"] = id
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// normalizedJSON re-encodes raw so it compares equal to json.Marshal output.
func normalizedJSON(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return string(out)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestChallengeLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res, err := st.CreateChallenge(ctx, model.Document{
		"_id":      "client-supplied",
		"title":    "Plastic-free week",
		"category": "Waste",
		"target":   7.0,
	})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if !store.ValidID(res.InsertedID) {
		t.Fatalf("expected generated id, got %q", res.InsertedID)
	}

	got, err := st.GetChallenge(ctx, res.InsertedID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if got.ID() != res.InsertedID {
		t.Fatalf("unexpected id: %s", got.ID())
	}
	if got.String("title") != "Plastic-free week" {
		t.Fatalf("unexpected title: %v", got["title"])
	}

	upd, err := st.UpdateChallenge(ctx, res.InsertedID, model.Document{"title": "Plastic-free month", "_id": "ignored"})
	if err != nil {
		t.Fatalf("update challenge: %v", err)
	}
	if upd.MatchedCount != 1 || upd.ModifiedCount != 1 {
		t.Fatalf("unexpected update result: %+v", upd)
	}
	got, _ = st.GetChallenge(ctx, res.InsertedID)
	if got.String("title") != "Plastic-free month" || got.String("category") != "Waste" {
		t.Fatalf("expected merged fields, got %v", got)
	}

	upd, err = st.UpdateChallenge(ctx, res.InsertedID, model.Document{"title": "Plastic-free month"})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if upd.MatchedCount != 1 || upd.ModifiedCount != 0 {
		t.Fatalf("expected unmodified match, got %+v", upd)
	}

	del, err := st.DeleteChallenge(ctx, res.InsertedID)
	if err != nil {
		t.Fatalf("delete challenge: %v", err)
	}
	if del.DeletedCount != 1 {
		t.Fatalf("expected one deletion, got %d", del.DeletedCount)
	}
	if _, err := st.GetChallenge(ctx, res.InsertedID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := st.DeleteChallenge(ctx, res.InsertedID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := st.UpdateChallenge(ctx, res.InsertedID, model.Document{"title": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestIncrementParticipants(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	res, err := st.CreateChallenge(ctx, model.Document{"title": "Bike to work"})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := st.IncrementParticipants(ctx, res.InsertedID, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	got, _ := st.GetChallenge(ctx, res.InsertedID)
	if got["participants"] != float64(2) {
		t.Fatalf("expected participants 2, got %v", got["participants"])
	}

	if err := st.IncrementParticipants(ctx, store.NewID(), 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimJoinOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := model.UserActivity{ChallengeID: "c1", Email: "ana@example.com", JoinedAt: time.Now()}
	if err := st.ClaimJoin(ctx, &first); err != nil {
		t.Fatalf("claim join: %v", err)
	}
	if first.ID == "" || first.Type != model.ActivityJoin {
		t.Fatalf("expected id and join type, got %+v", first)
	}

	again := model.UserActivity{ChallengeID: "c1", Email: "ana@example.com", JoinedAt: time.Now()}
	if err := st.ClaimJoin(ctx, &again); !errors.Is(err, store.ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	other := model.UserActivity{ChallengeID: "c2", Email: "ana@example.com", JoinedAt: time.Now()}
	if err := st.ClaimJoin(ctx, &other); err != nil {
		t.Fatalf("claim other challenge: %v", err)
	}

	// Tip activities never collide with each other.
	for i := 0; i < 2; i++ {
		tip := model.UserActivity{Email: "ana@example.com", Type: model.ActivityTip, TipID: store.NewID(), JoinedAt: time.Now()}
		if err := st.CreateActivity(ctx, &tip); err != nil {
			t.Fatalf("create tip activity: %v", err)
		}
	}

	activities, err := st.ListActivitiesByEmail(ctx, "ana@example.com")
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 4 {
		t.Fatalf("expected 4 activities, got %d", len(activities))
	}
	if activities[0].Type != model.ActivityTip {
		t.Fatalf("expected newest activity first, got %+v", activities[0])
	}
}

func TestGetChallengesByIDsSkipsMissing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, _ := st.CreateChallenge(ctx, model.Document{"title": "A"})
	b, _ := st.CreateChallenge(ctx, model.Document{"title": "B"})

	docs, err := st.GetChallengesByIDs(ctx, []string{a.InsertedID, store.NewID(), b.InsertedID, a.InsertedID, "not-an-id"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(docs))
	}

	docs, err = st.GetChallengesByIDs(ctx, nil)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty lookup, got %v, %v", docs, err)
	}
}

func TestTipsOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, title := range []string{"oldest", "middle", "newest"} {
		_, err := st.CreateTip(ctx, model.Document{
			"title":     title,
			"upvotes":   0,
			"createdAt": base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create tip: %v", err)
		}
	}

	natural, err := st.ListTips(ctx, store.TipListOpts{})
	if err != nil {
		t.Fatalf("list tips: %v", err)
	}
	if natural[0].String("title") != "oldest" {
		t.Fatalf("expected insertion order, got %v", natural[0]["title"])
	}

	newest, err := st.ListTips(ctx, store.TipListOpts{Sort: store.SortNew})
	if err != nil {
		t.Fatalf("list tips: %v", err)
	}
	if newest[0].String("title") != "newest" || newest[2].String("title") != "oldest" {
		t.Fatalf("expected newest first, got %v, %v", newest[0]["title"], newest[2]["title"])
	}
}

func TestJoinedChallengesAuditLog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	jc := model.JoinedChallenge{ChallengeID: "c1", Email: "ben@example.com", JoinedAt: time.Now()}
	if err := st.CreateJoinedChallenge(ctx, &jc); err != nil {
		t.Fatalf("create joined challenge: %v", err)
	}
	list, err := st.ListJoinedChallenges(ctx)
	if err != nil {
		t.Fatalf("list joined challenges: %v", err)
	}
	if len(list) != 1 || list[0].ID != jc.ID || list[0].Email != "ben@example.com" {
		t.Fatalf("unexpected audit log: %+v", list)
	}
}

func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecotrac.db")
	st, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.CreateChallenge(context.Background(), model.Document{"title": "kept"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_ = st.Close()

	st, err = Open(path, time.Second)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	docs, err := st.ListChallenges(context.Background())
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected persisted challenge, got %v, %v", docs, err)
	}
}

func TestGetChallengesByIDsBatches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.CreateChallenge(ctx, model.Document{"title": "first"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	last, err := st.CreateChallenge(ctx, model.Document{"title": "last"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Known ids land in different batches, surrounded by unknown ones.
	ids := []string{first.InsertedID}
	for i := 0; i < 2*lookupBatchSize+200; i++ {
		ids = append(ids, store.NewID())
	}
	ids = append(ids, last.InsertedID)

	docs, err := st.GetChallengesByIDs(ctx, ids)
	if err != nil {
		t.Fatalf("lookup %d ids: %v", len(ids), err)
	}
	if len(docs) != 2 || docs[0]["_id"] != first.InsertedID || docs[1]["_id"] != last.InsertedID {
		t.Fatalf("expected both known challenges, got %v", docs)
	}
}

func TestDSNAppliesBusyTimeout(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ecotrac.db", "file:ecotrac.db?_pragma=busy_timeout(5000)"},
		{"/var/lib/ecotrac.db", "file:/var/lib/ecotrac.db?_pragma=busy_timeout(5000)"},
		{"file:mem?mode=memory&cache=shared", "file:mem?mode=memory&cache=shared&_pragma=busy_timeout(5000)"},
	}
	for _, tc := range cases {
		if got := dsn(tc.in); got != tc.want {
			t.Errorf("dsn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConcurrentClaimJoinOnFile(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "ecotrac.db"), 10*time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			activity := model.UserActivity{ChallengeID: "c1", Email: "ana@example.com", JoinedAt: time.Now()}
			err := st.ClaimJoin(ctx, &activity)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed++
			case !errors.Is(err, store.ErrAlreadyJoined):
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected claim errors: %v", errs)
	}
	if claimed != 1 {
		t.Fatalf("expected exactly one claim, got %d", claimed)
	}
}

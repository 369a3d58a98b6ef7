package httpapp_test

import (
	"errors"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/ecotrac/ecotrac/internal/client"
	"github.com/ecotrac/ecotrac/internal/config"
	httpapp "github.com/ecotrac/ecotrac/internal/http"
	"github.com/ecotrac/ecotrac/internal/logging"
	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store/sqlite"
)

func TestEndToEndServer(t *testing.T) {
	st, err := sqlite.Open("file:e2e_test?mode=memory&cache=shared", 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	cfg := config.Config{Addr: ":0", Store: config.StoreSQLite, AuditJoins: true}
	server := httpapp.NewServer(st, cfg, logging.New("ecotrac-e2e", "error", "json", io.Discard))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	httpServer := &http.Server{Handler: server}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	defer httpServer.Close()

	c := client.New("http://" + listener.Addr().String())

	if err := c.Health(); err != nil {
		t.Fatalf("health: %v", err)
	}

	created, err := c.CreateChallenge(model.Document{"title": "E2E Challenge", "category": "Energy"})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}

	if err := c.JoinChallenge(created.InsertedID, "e2e@example.com"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := c.JoinChallenge(created.InsertedID, "e2e@example.com"); !errors.Is(err, client.ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}

	if _, err := c.PostTip(model.Document{"title": "Turn it off", "content": "Standby costs", "category": "Energy", "email": "e2e@example.com"}); err != nil {
		t.Fatalf("post tip: %v", err)
	}

	feed, err := c.MyActivities("e2e@example.com")
	if err != nil {
		t.Fatalf("my activities: %v", err)
	}
	if len(feed.Activities) != 2 || len(feed.Challenges) != 1 {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if feed.Activities[0].Type != model.ActivityTip || feed.Activities[1].Challenge.String("title") != "E2E Challenge" {
		t.Fatalf("unexpected activity order or content: %+v", feed.Activities)
	}

	if _, err := c.DeleteChallenge(created.InsertedID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetChallenge(created.InsertedID); !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

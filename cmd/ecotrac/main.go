package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecotrac/ecotrac/internal/client"
	"github.com/ecotrac/ecotrac/internal/config"
	httpapp "github.com/ecotrac/ecotrac/internal/http"
	"github.com/ecotrac/ecotrac/internal/logging"
	"github.com/ecotrac/ecotrac/internal/model"
	"github.com/ecotrac/ecotrac/internal/store"
	"github.com/ecotrac/ecotrac/internal/store/mongodb"
	"github.com/ecotrac/ecotrac/internal/store/sqlite"
)

const version = "ecotrac v0.1.0"

func main() {
	if len(os.Args) < 2 {
		runServer()
		return
	}

	cmd := os.Args[1]

	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	if cmd == "-v" || cmd == "--version" || cmd == "version" {
		fmt.Println(version)
		return
	}

	if strings.HasPrefix(cmd, "-") {
		runServer()
		return
	}

	args := os.Args[2:]

	switch cmd {
	case "server", "serve":
		runServer()
	case "challenges", "ls":
		cmdChallenges(args)
	case "create":
		cmdCreate(args)
	case "join":
		cmdJoin(args)
	case "activities", "feed":
		cmdActivities(args)
	case "tips":
		cmdTips(args)
	case "tip":
		cmdTip(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ecotrac - Community eco challenges and tips

Usage: ecotrac <command> [options]

Server:
  server              Start the EcoTrac API server (default if no command)

Client Commands:
  challenges          List challenges, or show one with --id
  create              Create a challenge
  join                Join a challenge
  activities          Show a user's joins and tips
  tips                List tips
  tip                 Share a tip

Every client command accepts --url (default: $ECOTRAC_URL or http://localhost:3000).

Examples:
  ecotrac create --title "Bike to work" --category Transport
  ecotrac join --id 65f1c0ffee0000000000beef --email ana@example.com
  ecotrac activities --email ana@example.com
  ecotrac tips --new
  ecotrac tip --title "Reuse jars" --content "Store leftovers" --category Home --email ana@example.com

Environment Variables (server):
  PORT                    Listen port (default: 3000)
  ECOTRAC_ADDR            Full listen address, overrides PORT
  ECOTRAC_STORE           mongo or sqlite (default: mongo)
  DB_USER, DB_PASS        MongoDB Atlas credentials
  MONGODB_HOST            Atlas host (default: cluster0.xhgpsyg.mongodb.net)
  MONGODB_URI             Full connection string, overrides the three above
  MONGODB_DATABASE        Database name (default: ecoTracdb)
  ECOTRAC_SQLITE_PATH     SQLite file (default: ecotrac.db)
  ECOTRAC_STORE_TIMEOUT   Per-operation store timeout (default: 10s)
  ECOTRAC_AUDIT_JOINS     Record joins in joinedChallenges (default: true)
  LOG_LEVEL               debug, info, warn, error (default: info)
  LOG_FORMAT              json or text (default: json)`)
}

// ============================================================================
// SERVER
// ============================================================================

func runServer() {
	cfg := config.Load()
	log := logging.New("ecotrac", cfg.LogLevel, cfg.LogFormat, os.Stderr)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	st, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("close store")
		}
	}()

	server := httpapp.NewServer(st, cfg, log)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("ecotrac listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Error("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

func openStore(cfg config.Config, log *logrus.Entry) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		log.WithField("path", cfg.SQLitePath).Info("opening sqlite store")
		st, err := sqlite.Open(cfg.SQLitePath, cfg.StoreTimeout)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		log.WithFields(logrus.Fields{
			"uri":      cfg.MongoURIRedacted(),
			"database": cfg.MongoDatabase,
		}).Info("connecting to mongodb")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		st, err := mongodb.Open(ctx, mongodb.Options{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.StoreTimeout,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

// ============================================================================
// CLIENT COMMANDS
// ============================================================================

func defaultURL() string {
	if u := os.Getenv("ECOTRAC_URL"); u != "" {
		return u
	}
	return "http://localhost:3000"
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdChallenges(args []string) {
	fs := flag.NewFlagSet("challenges", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	id := fs.String("id", "", "Show a single challenge")
	fs.Parse(args)

	c := client.New(*url)

	if *id != "" {
		challenge, err := c.GetChallenge(*id)
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Challenge %s not found\n", *id)
			os.Exit(1)
		}
		if err != nil {
			exitErr(err)
		}
		printDocument(challenge)
		return
	}

	challenges, err := c.ListChallenges()
	if err != nil {
		exitErr(err)
	}
	fmt.Printf("\n🌱 EcoTrac challenges (%d)\n\n", len(challenges))
	for i, ch := range challenges {
		fmt.Printf("%d. %s\n", i+1, ch.String("title"))
		fmt.Printf("   %s | %v participants | #%s\n\n", orDash(ch.String("category")), participants(ch), ch.ID())
	}
}

func cmdCreate(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	title := fs.String("title", "", "Challenge title (required)")
	category := fs.String("category", "", "Challenge category")
	description := fs.String("description", "", "Challenge description")
	fs.Parse(args)

	if *title == "" {
		fmt.Fprintln(os.Stderr, "Error: --title is required")
		fmt.Fprintln(os.Stderr, "Usage: ecotrac create --title <title> [--category <category>] [--description <text>]")
		os.Exit(1)
	}

	doc := model.Document{"title": *title, "participants": 0}
	if *category != "" {
		doc["category"] = *category
	}
	if *description != "" {
		doc["description"] = *description
	}

	res, err := client.New(*url).CreateChallenge(doc)
	if err != nil {
		exitErr(err)
	}
	fmt.Printf("✓ Created challenge #%s\n", res.InsertedID)
}

func cmdJoin(args []string) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	id := fs.String("id", "", "Challenge ID (required)")
	email := fs.String("email", "", "Your email (required)")
	fs.Parse(args)

	if *id == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "Error: --id and --email are required")
		fmt.Fprintln(os.Stderr, "Usage: ecotrac join --id <challenge-id> --email <email>")
		os.Exit(1)
	}

	err := client.New(*url).JoinChallenge(*id, *email)
	switch {
	case errors.Is(err, client.ErrAlreadyJoined):
		fmt.Printf("Already joined challenge #%s\n", *id)
	case errors.Is(err, client.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Challenge %s not found\n", *id)
		os.Exit(1)
	case err != nil:
		exitErr(err)
	default:
		fmt.Printf("✓ Joined challenge #%s\n", *id)
	}
}

func cmdActivities(args []string) {
	fs := flag.NewFlagSet("activities", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	email := fs.String("email", "", "User email (required)")
	fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "Error: --email is required")
		os.Exit(1)
	}

	feed, err := client.New(*url).MyActivities(*email)
	if err != nil {
		exitErr(err)
	}

	fmt.Printf("\nActivities of %s (%d)\n\n", *email, len(feed.Activities))
	for _, a := range feed.Activities {
		when := a.JoinedAt.Local().Format("2006-01-02 15:04")
		switch a.Type {
		case model.ActivityTip:
			fmt.Printf("  %s  shared tip %q\n", when, a.Title)
		default:
			title := "(deleted challenge)"
			if a.Challenge != nil {
				title = a.Challenge.String("title")
			}
			fmt.Printf("  %s  joined %s\n", when, title)
		}
	}
}

func cmdTips(args []string) {
	fs := flag.NewFlagSet("tips", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	newest := fs.Bool("new", false, "Newest first")
	fs.Parse(args)

	tips, err := client.New(*url).ListTips(*newest)
	if err != nil {
		exitErr(err)
	}

	fmt.Printf("\n💡 EcoTrac tips (%d)\n\n", len(tips))
	for i, tip := range tips {
		fmt.Printf("%d. %s [%s]\n", i+1, tip.String("title"), orDash(tip.String("category")))
		if content := tip.String("content"); content != "" {
			fmt.Printf("   %s\n", content)
		}
		fmt.Printf("   %v upvotes | by %s\n\n", tip["upvotes"], orDash(tip.String("email")))
	}
}

func cmdTip(args []string) {
	fs := flag.NewFlagSet("tip", flag.ExitOnError)
	url := fs.String("url", defaultURL(), "EcoTrac server URL")
	title := fs.String("title", "", "Tip title (required)")
	content := fs.String("content", "", "Tip text")
	category := fs.String("category", "", "Tip category")
	email := fs.String("email", "", "Your email")
	fs.Parse(args)

	if *title == "" {
		fmt.Fprintln(os.Stderr, "Error: --title is required")
		fmt.Fprintln(os.Stderr, "Usage: ecotrac tip --title <title> [--content <text>] [--category <category>] [--email <email>]")
		os.Exit(1)
	}

	tip := model.Document{"title": *title, "content": *content, "category": *category}
	if *email != "" {
		tip["email"] = *email
	}
	res, err := client.New(*url).PostTip(tip)
	if err != nil {
		exitErr(err)
	}
	fmt.Printf("✓ Shared tip #%s\n", res.InsertedID)
}

func printDocument(doc model.Document) {
	fmt.Printf("\n%s\n", orDash(doc.String("title")))
	keys := make([]string, 0, len(doc))
	for k := range doc {
		if k != "title" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-14s %v\n", k+":", doc[k])
	}
}

func participants(doc model.Document) any {
	if v, ok := doc["participants"]; ok {
		return v
	}
	return 0
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

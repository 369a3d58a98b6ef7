package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/ecotrac/ecotrac/internal/client"
	"github.com/ecotrac/ecotrac/internal/logging"
	"github.com/ecotrac/ecotrac/internal/model"
)

var users = []string{
	"ana@example.com",
	"ben@example.com",
	"chen@example.com",
	"dara@example.com",
	"eli@example.com",
}

var challenges = []model.Document{
	{"title": "Bike to Work Week", "category": "Transport", "description": "Swap the car for a bike on every commute.", "duration": 7, "target": "5 rides", "participants": 0},
	{"title": "Plastic-Free July", "category": "Waste", "description": "Refuse single-use plastic for a month.", "duration": 31, "target": "0 plastic bags", "participants": 0},
	{"title": "Meatless Mondays", "category": "Food", "description": "Plant-based meals every Monday.", "duration": 28, "target": "4 Mondays", "participants": 0},
	{"title": "Five-Minute Showers", "category": "Water", "description": "Keep every shower under five minutes.", "duration": 14, "target": "14 showers", "participants": 0},
	{"title": "Unplug at Night", "category": "Energy", "description": "Switch off standby devices before bed.", "duration": 21, "target": "21 nights", "participants": 0},
	{"title": "Plant a Tree", "category": "Nature", "description": "Plant and care for one tree.", "duration": 30, "target": "1 tree", "participants": 0},
}

var tips = []struct {
	title, content, category string
}{
	{"Reuse glass jars", "Jars make airtight containers for leftovers and bulk shopping.", "Waste"},
	{"Wash on cold", "Most of a washing machine's energy goes into heating water.", "Energy"},
	{"Batch your errands", "One longer trip burns less fuel than several short ones from a cold start.", "Transport"},
	{"Fix dripping taps", "A tap dripping once a second wastes thousands of litres a year.", "Water"},
	{"Freeze bread", "Slice and freeze loaves so nothing goes stale.", "Food"},
	{"Line-dry laundry", "Skip the dryer when the weather allows.", "Energy"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "EcoTrac server URL")
	flag.Parse()

	log := logging.New("ecotrac-seed", "info", "text", os.Stderr)
	log.WithField("url", *baseURL).Info("seeding")

	c := client.New(*baseURL)

	var challengeIDs []string
	for _, ch := range challenges {
		res, err := c.CreateChallenge(ch)
		if err != nil {
			log.WithError(err).Fatalf("create challenge %q", ch.String("title"))
		}
		challengeIDs = append(challengeIDs, res.InsertedID)
		log.Infof("✓ Challenge #%s: %s", res.InsertedID, ch.String("title"))
	}

	// Each user joins 1-3 random challenges; repeats exercise the duplicate path.
	joins := 0
	for _, email := range users {
		n := rand.Intn(3) + 1
		for i := 0; i < n; i++ {
			id := challengeIDs[rand.Intn(len(challengeIDs))]
			err := c.JoinChallenge(id, email)
			switch {
			case errors.Is(err, client.ErrAlreadyJoined):
				log.Infof("  %s already in #%s", email, id)
			case err != nil:
				log.WithError(err).Warnf("✗ %s failed to join #%s", email, id)
			default:
				joins++
				log.Infof("✓ %s joined #%s", email, id)
			}
		}
	}

	for _, tip := range tips {
		email := users[rand.Intn(len(users))]
		res, err := c.PostTip(model.Document{
			"title":    tip.title,
			"content":  tip.content,
			"category": tip.category,
			"email":    email,
		})
		if err != nil {
			log.WithError(err).Warn("✗ Failed to post tip")
			continue
		}
		log.Infof("✓ Tip #%s: %s (by %s)", res.InsertedID, tip.title, email)

		// Spread out createdAt so sort=new is visible
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Printf("Challenges: %d\n", len(challengeIDs))
	fmt.Printf("Joins:      %d\n", joins)
	fmt.Printf("Tips:       %d\n", len(tips))
	fmt.Println("\nView at:", *baseURL)
}

package app_test

import (
	"testing"
	"time"

	"quizhub/internal/app"
	"quizhub/internal/domain"
)

func TestFeedDeliversSnapshots(t *testing.T) {
	feed := app.NewLeaderboardFeed()

	updates, cancel := feed.Subscribe()
	defer cancel()

	feed.Publish([]domain.LeaderboardRow{{UserID: 1, Username: "alice", TotalScore: 10, AvgScore: 10, TotalAttempts: 1}})

	select {
	case snapshot := <-updates:
		if len(snapshot.Rows) != 1 || snapshot.Rows[0].Username != "alice" {
			t.Fatalf("unexpected snapshot %+v", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected snapshot")
	}
}

func TestFeedPrimesLateSubscribers(t *testing.T) {
	feed := app.NewLeaderboardFeed()
	feed.Publish([]domain.LeaderboardRow{{UserID: 1, Username: "alice"}})

	updates, cancel := feed.Subscribe()
	defer cancel()

	select {
	case snapshot := <-updates:
		if len(snapshot.Rows) != 1 {
			t.Fatalf("expected primed snapshot, got %+v", snapshot)
		}
	default:
		t.Fatalf("expected the latest snapshot immediately on subscribe")
	}
}

func TestFeedCancelIsIdempotent(t *testing.T) {
	feed := app.NewLeaderboardFeed()
	_, cancel := feed.Subscribe()
	cancel()
	cancel() // second cancel must not panic

	// Publishing after cancellation must not block or panic.
	feed.Publish(nil)
}

func TestFeedDropsStaleUpdatesForSlowSubscribers(t *testing.T) {
	feed := app.NewLeaderboardFeed()
	updates, cancel := feed.Subscribe()
	defer cancel()

	// Overflow the buffer; Publish must never block.
	for i := 0; i < 50; i++ {
		feed.Publish([]domain.LeaderboardRow{{UserID: int64(i)}})
	}

	var last domain.Leaderboard
	for {
		select {
		case snapshot := <-updates:
			last = snapshot
			continue
		default:
		}
		break
	}
	if len(last.Rows) != 1 || last.Rows[0].UserID != 49 {
		t.Fatalf("expected the newest snapshot to survive, got %+v", last)
	}
}

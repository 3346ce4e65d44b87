package app

import (
	"sync"
	"time"

	"quizhub/internal/domain"
)

// LeaderboardFeed fans leaderboard snapshots out to live subscribers.
type LeaderboardFeed struct {
	mu          sync.Mutex
	now         func() time.Time
	latest      *domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed() *LeaderboardFeed {
	return &LeaderboardFeed{
		now:         time.Now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// NewLeaderboardFeedWithClock is test-only for deterministic timestamps.
func NewLeaderboardFeedWithClock(now func() time.Time) *LeaderboardFeed {
	f := NewLeaderboardFeed()
	f.now = now
	return f
}

// Subscribe returns a channel receiving snapshots, primed with the latest
// one when present. The caller must invoke cancel to avoid leaks.
func (f *LeaderboardFeed) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.latest != nil {
		ch <- *f.latest
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts a fresh snapshot. Slow subscribers have their stale
// update dropped so broadcast never blocks.
func (f *LeaderboardFeed) Publish(rows []domain.LeaderboardRow) {
	snapshot := domain.Leaderboard{Rows: rows, UpdatedAt: f.now()}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &snapshot

	for ch := range f.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

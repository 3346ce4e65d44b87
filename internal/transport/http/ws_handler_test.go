package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizhub/internal/app"
	"quizhub/internal/auth"
	"quizhub/internal/domain"
	"quizhub/internal/infra/memory"
)

func TestLeaderboardFeedStreamsSnapshots(t *testing.T) {
	store := memory.NewStore()
	tokens := auth.NewManager("test-secret", time.Hour)
	feed := app.NewLeaderboardFeed()

	server := NewServer(
		app.NewAttemptService(store, store, store, store, feed),
		app.NewCatalogService(store, store, store, store),
		app.NewAuthService(store, tokens),
		tokens,
		feed,
	)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	u := "ws" + ts.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	feed.Publish([]domain.LeaderboardRow{
		{UserID: 1, Username: "alice", TotalAttempts: 1, AvgScore: 10, TotalScore: 10},
	})

	payload := readNext(conn, t, "leaderboard")
	rows, ok := payload["rows"].([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected one leaderboard row, got %+v", payload)
	}
	if rows[0].(map[string]any)["username"] != "alice" {
		t.Fatalf("unexpected row %+v", rows[0])
	}
}

func TestLeaderboardFeedPrimesNewConnections(t *testing.T) {
	store := memory.NewStore()
	tokens := auth.NewManager("test-secret", time.Hour)
	feed := app.NewLeaderboardFeed()
	feed.Publish([]domain.LeaderboardRow{{UserID: 2, Username: "bob"}})

	server := NewServer(
		app.NewAttemptService(store, store, store, store, feed),
		app.NewCatalogService(store, store, store, store),
		app.NewAuthService(store, tokens),
		tokens,
		feed,
	)

	ts := httptest.NewServer(server.Routes())
	defer ts.Close()

	u := "ws" + ts.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The snapshot published before the dial arrives without a new submit.
	payload := readNext(conn, t, "leaderboard")
	rows := payload["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["username"] != "bob" {
		t.Fatalf("expected primed snapshot, got %+v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Payload
}

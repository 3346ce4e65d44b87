package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizhub/internal/app"
	"quizhub/internal/domain"
	"quizhub/internal/infra/postgres"
	"quizhub/internal/infra/postgres/migrations"
	infraredis "quizhub/internal/infra/redis"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(pgURL)
	defer db.Close()
	runMigrations(t, ctx, db)

	store := postgres.NewStore(db)

	userID, err := store.CreateUser(ctx, domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	quizID, err := store.CreateQuiz(ctx, domain.Quiz{Title: "Arithmetic", Description: "Basics", TimeLimitMinutes: 15, Active: true, CreatedBy: userID})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	q1, err := store.CreateQuestion(ctx, domain.Question{QuizID: quizID, Text: "2+2?", OptionA: "4", OptionB: "3", OptionC: "5", OptionD: "6", Correct: domain.OptionA, Points: 10})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	q2, err := store.CreateQuestion(ctx, domain.Question{QuizID: quizID, Text: "3+3?", OptionA: "5", OptionB: "6", OptionC: "7", OptionD: "8", Correct: domain.OptionB, Points: 10})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := postgres.NewQuestionLoader(pool)
	display := infraredis.NewQuestionCache(redisClient, loader, 5*time.Minute)
	board := infraredis.NewLeaderboardCache(redisClient, store, 15*time.Second)
	feed := app.NewLeaderboardFeed()

	attempts := app.NewAttemptService(store, store, store, board, feed)
	catalog := app.NewCatalogService(store, display, store, store)

	// The display path runs through Redis and hides the answer key.
	views, err := catalog.QuestionsForDisplay(ctx, quizID)
	if err != nil {
		t.Fatalf("display questions: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 question views, got %d", len(views))
	}

	attemptID, err := attempts.Open(ctx, userID, quizID)
	if err != nil {
		t.Fatalf("open attempt: %v", err)
	}

	report, err := attempts.Submit(ctx, attemptID, quizID, domain.AnswerMap{
		q1: domain.OptionA,
		q2: domain.OptionC,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.Score != 10 || report.TotalQuestions != 2 {
		t.Fatalf("expected 10 points over 2 questions, got %+v", report)
	}

	history, err := attempts.History(ctx, userID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Score != 10 || history[0].TotalQuestions != 2 {
		t.Fatalf("unexpected history %+v", history)
	}

	rows, err := attempts.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Username != "alice" || rows[0].TotalScore != 10 {
		t.Fatalf("unexpected leaderboard %+v", rows)
	}

	// The aggregate is now cached in Redis.
	if err := redisClient.Get(ctx, "leaderboard:top").Err(); err != nil {
		t.Fatalf("expected cached leaderboard key: %v", err)
	}
}

func TestSoftDeleteEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(pgURL)
	defer db.Close()
	runMigrations(t, ctx, db)

	store := postgres.NewStore(db)

	userID, err := store.CreateUser(ctx, domain.User{Username: "admin", Email: "admin@example.com", PasswordHash: "x", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	quizID, err := store.CreateQuiz(ctx, domain.Quiz{Title: "Gone", Description: "d", TimeLimitMinutes: 30, Active: true, CreatedBy: userID})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}

	if err := store.DeactivateQuiz(ctx, quizID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	listed, err := store.ListActiveQuizzes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("deactivated quiz still listed: %+v", listed)
	}

	// The row survives; only the flag flips.
	quiz, err := store.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if quiz.Active {
		t.Fatalf("expected inactive quiz, got %+v", quiz)
	}

	if err := store.DeactivateQuiz(ctx, 9999); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func runMigrations(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

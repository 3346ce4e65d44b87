package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/crypto/bcrypt"

	"quizhub/internal/app"
	"quizhub/internal/auth"
	"quizhub/internal/config"
	"quizhub/internal/domain"
	"quizhub/internal/infra/memory"
	"quizhub/internal/infra/postgres"
	infraredis "quizhub/internal/infra/redis"
	transport "quizhub/internal/transport/http"
)

const defaultTokenTTL = 2 * time.Hour

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	leaderboardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)

	// Repositories: the authoritative store plus a display-path question
	// cache. Scoring always reads the store so the scored set is live.
	var (
		users    app.UserRepository
		quizzes  app.QuizRepository
		attempts app.AttemptRepository
		catalog  app.CatalogRepository
		scoring  app.QuestionRepository
		display  app.QuestionRepository
		board    app.LeaderboardSource
	)

	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		store := postgres.NewStore(db)
		users, quizzes, attempts, catalog, scoring = store, store, store, store, store

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader := postgres.NewQuestionLoader(pool)

		if redisClient != nil {
			display = infraredis.NewQuestionCache(redisClient, loader, questionTTL)
			board = infraredis.NewLeaderboardCache(redisClient, store, leaderboardTTL)
		} else {
			display = memory.NewQuestionCache(loader, questionTTL)
			board = store
		}
	} else {
		log.Printf("no postgres url configured, using in-memory store with sample data")
		store := memory.NewStore()
		seedSampleData(ctx, store)
		users, quizzes, attempts, catalog, scoring = store, store, store, store, store
		display = memory.NewQuestionCache(store, questionTTL)
		board = store
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "dev-secret-change-in-production"
	}
	tokens := auth.NewManager(secret, config.TTLDuration(cfg.Auth.TokenTTL, defaultTokenTTL))

	feed := app.NewLeaderboardFeed()
	attemptSvc := app.NewAttemptService(quizzes, scoring, attempts, board, feed)
	catalogSvc := app.NewCatalogService(quizzes, display, scoring, catalog)
	authSvc := app.NewAuthService(users, tokens)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewServer(attemptSvc, catalogSvc, authSvc, tokens, feed).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizhub on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedSampleData loads a demo admin and quiz so the in-memory mode is usable
// out of the box (admin@example.com / admin123).
func seedSampleData(ctx context.Context, store *memory.Store) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("seed: hash password: %v", err)
		return
	}
	adminID, err := store.CreateUser(ctx, domain.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		log.Printf("seed: create user: %v", err)
		return
	}

	categoryID, _ := store.CreateCategory(ctx, domain.Category{
		Name:        "General Knowledge",
		Description: "A bit of everything",
	})
	quizID, err := store.CreateQuiz(ctx, domain.Quiz{
		Title:            "Getting Started",
		Description:      "A short sample quiz",
		CategoryID:       categoryID,
		TimeLimitMinutes: 5,
		Active:           true,
		CreatedBy:        adminID,
	})
	if err != nil {
		log.Printf("seed: create quiz: %v", err)
		return
	}

	_, _ = store.CreateQuestion(ctx, domain.Question{
		QuizID:  quizID,
		Text:    "What is 2 + 2?",
		OptionA: "3",
		OptionB: "4",
		OptionC: "5",
		OptionD: "22",
		Correct: domain.OptionB,
		Points:  10,
	})
	_, _ = store.CreateQuestion(ctx, domain.Question{
		QuizID:  quizID,
		Text:    "Which planet is known as the red planet?",
		OptionA: "Venus",
		OptionB: "Jupiter",
		OptionC: "Mars",
		OptionD: "Saturn",
		Correct: domain.OptionC,
		Points:  10,
	})
}

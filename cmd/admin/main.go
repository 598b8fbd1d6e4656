package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/courseforge/quizgen/internal/core/config"
	"github.com/courseforge/quizgen/internal/core/domain"
	redisclient "github.com/courseforge/quizgen/internal/infra/redis"
	"github.com/courseforge/quizgen/internal/infra/storage/postgres"
	"github.com/courseforge/quizgen/internal/pipeline/recovery"
)

const usage = `Usage: admin [flags] <command>

Commands:
  anonymize --user <id>                  Detach and soft-delete all quizzes of a user
  rollback  --quiz <id> --to <status>    Roll a quiz back to a prior retryable status
  requeue   --quiz <id> --owner <id> --stage <stage>
                                         Push a stage trigger job for a quiz
`

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	userID := flag.String("user", "", "User id")
	quizID := flag.String("quiz", "", "Quiz id")
	ownerID := flag.String("owner", "", "Quiz owner id")
	target := flag.String("to", "", "Rollback target status")
	stageName := flag.String("stage", "", "Stage to requeue (extraction, generation, export)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	_ = godotenv.Load()
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.RFC3339})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	if cfg.Database.URL == "" {
		fatal("connect", fmt.Errorf("database.url is not configured"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		fatal("connect", err)
	}
	defer db.Close()
	quizzes := postgres.NewQuizRepo(db)

	switch flag.Arg(0) {
	case "anonymize":
		if *userID == "" {
			fatal("anonymize", fmt.Errorf("--user is required"))
		}
		n, err := quizzes.AnonymizeOwner(ctx, *userID)
		if err != nil {
			fatal("anonymize", err)
		}
		fmt.Printf("Anonymized %d quizzes for user %s\n", n, *userID)

	case "rollback":
		if *quizID == "" || *target == "" {
			fatal("rollback", fmt.Errorf("--quiz and --to are required"))
		}
		mgr := recovery.NewManager(quizzes, slog.Default())
		err := mgr.RollbackTo(ctx, *quizID, domain.Status(*target), nil, "admin rollback", uuid.New().String())
		if err != nil {
			fatal("rollback", err)
		}
		fmt.Printf("Rolled quiz %s back to %s\n", *quizID, *target)

	case "requeue":
		if *quizID == "" || *ownerID == "" || *stageName == "" {
			fatal("requeue", fmt.Errorf("--quiz, --owner and --stage are required"))
		}
		if cfg.Redis.URL == "" {
			fatal("requeue", fmt.Errorf("redis.url is not configured"))
		}
		queue, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			fatal("requeue", err)
		}
		defer queue.Close()
		err = queue.Enqueue(ctx, redisclient.Job{
			QuizID:        *quizID,
			OwnerID:       *ownerID,
			Stage:         domain.Stage(*stageName),
			CorrelationID: uuid.New().String(),
		})
		if err != nil {
			fatal("requeue", err)
		}
		fmt.Printf("Requeued quiz %s for stage %s\n", *quizID, *stageName)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(op string, err error) {
	fmt.Fprintf(os.Stderr, "admin: %s: %v\n", op, err)
	os.Exit(1)
}

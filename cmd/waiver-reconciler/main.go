package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"waiver-reconciler/internal/config"
	"waiver-reconciler/internal/database"
	"waiver-reconciler/internal/intake"
	"waiver-reconciler/internal/lock"
	"waiver-reconciler/internal/logger"
	"waiver-reconciler/internal/repository"
	"waiver-reconciler/internal/service"
)

const usage = `usage: waiver-reconciler <command> [flags]

commands:
  run                                      reconcile and rewrite registries and reports
  ingest -kind member|attest|guest -inbox  merge extracted documents into a document table
  parents                                  print family inference per account
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Init logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "waiver-reconciler")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Build the reconciler
	rec, cleanup, err := newReconciler(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create reconciler", zap.Error(err))
	}
	defer cleanup()

	// 5. Dispatch
	if err := dispatch(ctx, rec, command, args); err != nil {
		if errors.Is(err, lock.ErrRunLocked) {
			log.Error("Another run is in progress", zap.Error(err))
		} else {
			log.Error("Command failed", zap.String("command", command), zap.Error(err))
		}
		cleanup()
		stop()
		log.Sync()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, rec *service.Reconciler, command string, args []string) error {
	switch command {
	case "run":
		res, err := rec.Run(ctx)
		if err != nil {
			return err
		}
		s := res.Summary
		fmt.Printf("adults signed %d, unsigned %d\n", s.AdultsSigned, s.AdultsUnsigned)
		fmt.Printf("family records signed %d, unsigned %d\n", s.FamilyRecordsSigned, s.FamilyRecordsUnsigned)
		fmt.Printf("unknown parentage accounts %d, covered members %d\n", s.UnknownAccounts, s.CoveredMembers)
		return nil

	case "ingest":
		fs := flag.NewFlagSet("ingest", flag.ExitOnError)
		kindFlag := fs.String("kind", "", "document kind: member, attest or guest")
		inbox := fs.String("inbox", "", "CSV of extracted new documents")
		if err := fs.Parse(args); err != nil {
			return err
		}
		kind, err := intake.ParseKind(*kindFlag)
		if err != nil {
			return err
		}
		if *inbox == "" {
			return errors.New("ingest needs -inbox")
		}
		stats, err := rec.Ingest(ctx, kind, *inbox)
		if err != nil {
			return err
		}
		fmt.Printf("added %d, skipped %d, truncated %d\n", stats.Added, stats.Skipped, stats.Truncated)
		return nil

	case "parents":
		_, err := rec.Parents(ctx, os.Stdout)
		return err

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
}

// newReconciler connects the run lock backend and the optional mirror.
func newReconciler(ctx context.Context, cfg *config.Config, log *zap.Logger) (*service.Reconciler, func(), error) {
	var (
		redisClient *redis.Client
		db          *sql.DB
		err         error
	)
	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		if err := database.Close(db); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}

	lockFor := func(token string) lock.Locker {
		return lock.NewFileLock(cfg.OutputPath(".run.lock"), cfg.Lock.TTL, token, log)
	}
	if cfg.Lock.Mode == "redis" {
		redisClient, err = database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, func() {}, err
		}
		lockFor = func(token string) lock.Locker {
			return lock.NewRedisLock(redisClient, cfg.Lock.Key, cfg.Lock.TTL, token, log)
		}
	}

	var mirror *repository.RegistryMirror
	if cfg.DBEnabled {
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		mirror = repository.NewRegistryMirror(db, log)
		if err := mirror.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}

	return service.NewReconciler(cfg, lockFor, mirror, log), cleanup, nil
}

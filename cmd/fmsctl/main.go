package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/ngo-fms/fms/cmd/fmsctl/cli"
	"github.com/ngo-fms/fms/internal/app"
	"github.com/ngo-fms/fms/internal/auth"
	"github.com/ngo-fms/fms/internal/platform/cache"
	"github.com/ngo-fms/fms/internal/platform/db"
	"github.com/ngo-fms/fms/internal/users"
	"github.com/ngo-fms/fms/jobs"
)

const usage = `usage: fmsctl <command>

commands:
  seed              bootstrap an empty registry with the seed accounts
  pending           list registrations awaiting approval
  approve <email>   approve a pending registration
  digest            enqueue the pending registration digest
  queue             show default queue statistics
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	switch cmd := flag.Arg(0); cmd {
	case "seed", "pending", "approve":
		registry, closeFn, err := openRegistry(ctx, cfg)
		if err != nil {
			log.Fatalf("open registry: %v", err)
		}
		defer closeFn()
		if err := runRegistry(ctx, cli.NewRegistryCLI(registry), cmd, flag.Args()[1:]); err != nil {
			closeFn()
			log.Fatalf("%s: %v", cmd, err)
		}
	case "digest", "queue":
		redisOpts := cfg.AsynqRedis()
		client := asynq.NewClient(redisOpts)
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			_ = inspector.Close()
			_ = client.Close()
		}()
		if err := runJobs(ctx, cli.NewJobsCLI(client, inspector), cmd); err != nil {
			log.Fatalf("%s: %v", cmd, err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func openRegistry(ctx context.Context, cfg *app.Config) (*users.Service, func(), error) {
	matcher, err := auth.NewMatcher(cfg.CredentialScheme)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RegistryBackend == app.RegistryPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		repo := users.NewPGRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return users.NewService(repo, matcher, nil), pool.Close, nil
	}
	client, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		return nil, nil, err
	}
	return users.NewService(users.NewRedisRepository(client), matcher, nil), func() { _ = client.Close() }, nil
}

func runRegistry(ctx context.Context, c *cli.RegistryCLI, cmd string, args []string) error {
	switch cmd {
	case "seed":
		if err := c.Seed(ctx); err != nil {
			return err
		}
		fmt.Println("✓ registry seeded")
	case "pending":
		n, err := c.Pending(ctx, os.Stdout)
		if err != nil {
			return err
		}
		fmt.Printf("%d pending\n", n)
	case "approve":
		if len(args) != 1 {
			return fmt.Errorf("expected one email, got %d arguments", len(args))
		}
		u, err := c.Approve(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s is %s\n", u.Email, u.Status)
	}
	return nil
}

func runJobs(ctx context.Context, c *cli.JobsCLI, cmd string) error {
	switch cmd {
	case "digest":
		info, err := c.Trigger(ctx, jobs.TaskRegistryPendingDigest)
		if err != nil {
			return err
		}
		fmt.Printf("→ enqueued %s (%s)\n", info.Type, info.ID)
	case "queue":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/riskibarqy/oddsline/internal/app"
	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.NewJSON(cfg.LogLevel).Named("migration")
	defer func() { _ = logger.Sync() }()

	fatal := func(msg string, err error, args ...any) {
		logger.Error(msg, append(args, "error", err)...)
		_ = logger.Sync()
		os.Exit(1)
	}

	dsn := app.PostgresDSN(cfg)
	if dsn == "" {
		fatal("resolve database", errors.New("DB_URL is required"))
	}

	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		fatal("resolve migrations dir", err)
	}

	sourceURL := "file://" + filepath.ToSlash(migrationsDir)
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		fatal("create migrator", err, "source", sourceURL)
	}
	defer closeMigrator(m, logger)

	applied := func(err error, msg string, args ...any) {
		switch {
		case err == nil:
			logger.Info(msg, args...)
		case errors.Is(err, migrate.ErrNoChange):
			logger.Info("no migration changes", "source", sourceURL)
		default:
			closeMigrator(m, logger)
			fatal("run migration", err, "source", sourceURL)
		}
	}

	switch strings.ToLower(strings.TrimSpace(os.Args[1])) {
	case "up":
		applied(m.Up(), "migrations applied", "source", sourceURL)
	case "down":
		steps, err := parseSteps(os.Args[2:])
		if err != nil {
			fatal("parse steps", err)
		}
		applied(m.Steps(-steps), "migrations rolled back", "steps", steps)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("version: none")
			fmt.Println("dirty: false")
			return
		}
		if err != nil {
			fatal("read version", err)
		}
		fmt.Printf("version: %d\n", version)
		fmt.Printf("dirty: %t\n", dirty)
	case "force":
		if len(os.Args) < 3 {
			fatal("force", errors.New("a version argument is required"))
		}
		version, err := parseVersion(os.Args[2])
		if err != nil {
			fatal("parse version", err)
		}
		if err := m.Force(version); err != nil {
			fatal("force version", err, "version", version)
		}
		logger.Info("forced version", "version", version)
	case "goto", "migrate":
		if len(os.Args) < 3 {
			fatal("goto", errors.New("a target version argument is required"))
		}
		target, err := parseTarget(os.Args[2])
		if err != nil {
			fatal("parse target", err)
		}
		applied(m.Migrate(target), "migrated", "version", target)
	default:
		printUsage()
		os.Exit(2)
	}
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("version must be >= 0")
	}
	return value, nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func closeMigrator(m *migrate.Migrate, logger *logging.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("close migration db", "error", dbErr)
	}
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		return abs, nil
	}

	return "", fmt.Errorf("migration directory not found (checked MIGRATIONS_DIR, ./db/migrations, /app/db/migrations)")
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <up|down|version|force|goto> [args]\n", name)
	fmt.Fprintln(os.Stderr, "examples:")
	fmt.Fprintf(os.Stderr, "  %s up\n", name)
	fmt.Fprintf(os.Stderr, "  %s down 1\n", name)
	fmt.Fprintf(os.Stderr, "  %s version\n", name)
	fmt.Fprintf(os.Stderr, "  %s goto 1\n", name)
}

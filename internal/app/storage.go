package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/oddsline/internal/config"
	"github.com/riskibarqy/oddsline/internal/domain/bet"
	"github.com/riskibarqy/oddsline/internal/domain/match"
	"github.com/riskibarqy/oddsline/internal/domain/scraperrun"
	"github.com/riskibarqy/oddsline/internal/domain/team"
	"github.com/riskibarqy/oddsline/internal/domain/wallet"
	cacherepo "github.com/riskibarqy/oddsline/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/oddsline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/oddsline/internal/infrastructure/repository/postgres"
	basecache "github.com/riskibarqy/oddsline/internal/platform/cache"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

const (
	dbMaxOpenConns    = 10
	dbMaxIdleConns    = 5
	dbConnMaxLifetime = 30 * time.Minute
	dbPingTimeout     = 10 * time.Second
)

// Repositories is the storage backing one process.
type Repositories struct {
	Matches match.Repository
	Teams   team.Repository
	Bets    bet.Repository
	Wallets wallet.Repository
	Runs    scraperrun.Repository

	db *sqlx.DB
}

func (r Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// OpenRepositories builds the configured storage. Team lookups are cached in
// front of either driver since every cycle resolves the same names.
func OpenRepositories(ctx context.Context, cfg config.Config, logger *logging.Logger) (Repositories, error) {
	var repos Repositories
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return Repositories{}, err
		}
		if cfg.AppEnv == config.EnvDev {
			if err := postgres.BootstrapSeed(ctx, db); err != nil {
				_ = db.Close()
				return Repositories{}, err
			}
		}
		repos = Repositories{
			Matches: postgres.NewMatchRepository(db),
			Teams:   postgres.NewTeamRepository(db),
			Bets:    postgres.NewBetRepository(db),
			Wallets: postgres.NewWalletRepository(db),
			Runs:    postgres.NewScraperRunRepository(db),
			db:      db,
		}
		logger.InfoContext(ctx, "storage ready", "driver", cfg.StorageDriver, "db_name", dbNameFromURL(cfg.DBURL))
	default:
		store := memory.NewStore()
		memory.SeedAccounts(store, wallet.DevAccountIDs)
		repos = Repositories{
			Matches: store.Matches(),
			Teams:   memory.NewTeamRepository(nil),
			Bets:    store.Bets(),
			Wallets: store.Wallets(),
			Runs:    memory.NewScraperRunRepository(),
		}
		logger.WarnContext(ctx, "storage is in memory; state is lost on restart", "driver", cfg.StorageDriver)
	}

	repos.Teams = cacherepo.NewTeamRepository(repos.Teams, basecache.NewStore[team.Team](cfg.CacheTTL))
	return repos, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	dsn := PostgresDSN(cfg)
	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(dsn)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

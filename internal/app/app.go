// Package app wires configuration into the long-lived components shared by
// the server, the worker and dmdctl.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/hanzhi-dmd/companion/internal/ai"
	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/config"
	"github.com/hanzhi-dmd/companion/internal/consult"
	"github.com/hanzhi-dmd/companion/internal/db"
	"github.com/hanzhi-dmd/companion/internal/jobs"
	"github.com/hanzhi-dmd/companion/internal/kv"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/portal"
	"github.com/hanzhi-dmd/companion/internal/sources/drugs"
	"github.com/hanzhi-dmd/companion/internal/sources/pubmed"
	"github.com/hanzhi-dmd/companion/internal/sources/trials"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

type App struct {
	Cfg config.Config
	Log *logger.Logger

	DB       *gorm.DB
	KV       kv.Store
	Auth     *auth.StaticAuthenticator
	Store    *userdb.Store
	Registry *ai.Registry
	Engine   *consult.Engine

	Articles *pubmed.Client
	Trials   *trials.Client
	Drugs    *drugs.Catalog
	Portal   *portal.Service
	JobsRepo *jobs.Repo
}

// Build opens the database and key-value medium and assembles every
// component. The AI provider is resolved once; when it cannot be built the
// engine still runs and every analysis answers with the apology text.
func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	log = logger.OrNop(log)

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	store, err := kv.Open(ctx, cfg, gdb)
	if err != nil {
		return nil, err
	}
	authn, err := auth.NewStaticAuthenticator(cfg.UsersFile, log)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	catalog, err := drugs.Load()
	if err != nil {
		return nil, err
	}

	reg := ai.DefaultRegistry(cfg)
	provider, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Warn("ai provider unavailable", "provider", cfg.AIProvider, "err", err)
		provider = unavailable{err: err}
	}
	engine := consult.NewEngine(provider, consult.NewAssembler(consult.ParseLocale(cfg.Locale)), log)

	articles := pubmed.NewClient(cfg.PubMedBaseURL, cfg.PubMedAPIKey, cfg.PubMedRetMax, cfg.HTTPTimeout, log)
	trialsClient := trials.NewClient(cfg.TrialsBaseURL, cfg.TrialsPageSz, cfg.HTTPTimeout, log)

	repo := jobs.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate jobs: %w", err)
	}

	latency := userdb.Latencies{Login: cfg.LoginLatency, Logout: cfg.LogoutLatency, SaveProfile: cfg.SaveLatency}

	log.Info("app built",
		"kv", cfg.KVBackend,
		"db", db.Dialect(cfg.DBDSN),
		"ai_provider", cfg.AIProvider,
		"providers", reg.Names(),
		"locale", cfg.Locale,
	)
	return &App{
		Cfg:      cfg,
		Log:      log,
		DB:       gdb,
		KV:       store,
		Auth:     authn,
		Store:    userdb.NewStore(store, authn, latency, log, userdb.WithSessionTTL(cfg.TokenTTL)),
		Registry: reg,
		Engine:   engine,
		Articles: articles,
		Trials:   trialsClient,
		Drugs:    catalog,
		Portal:   portal.NewService(articles, trialsClient, catalog, engine, log),
		JobsRepo: repo,
	}, nil
}

type unavailable struct{ err error }

func (u unavailable) Chat(context.Context, []ai.Message) (string, error) { return "", u.err }

// Close releases the database and, for backends that hold one, the
// key-value connection.
func (a *App) Close() {
	if c, ok := a.KV.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

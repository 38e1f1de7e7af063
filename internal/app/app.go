// Package app wires configuration, storage backends and services into the
// objects shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/database"
	"github.com/digestmail/digestmail/internal/email"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/render"
	"github.com/digestmail/digestmail/internal/repository"
	"github.com/digestmail/digestmail/internal/service"
)

// App holds the wired services
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *database.Postgres
	Redis    *database.Redis
	Compose  *service.ComposeService
	Progress service.ProgressStore
	Runs     *repository.RunRepository
	Images   *repository.ImageRepository
}

// New connects the optional backends and builds the compose service.
// PostgreSQL and Redis are only dialed when enabled in cfg.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Runs = repository.NewRunRepository(db)
		log.Info().Msg("connected to PostgreSQL")
	}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.Redis = rdb
		a.Progress = repository.NewRedisProgressStore(rdb, cfg.Redis.TTL)
		log.Info().Msg("connected to Redis")
	} else {
		a.Progress = repository.NewMemoryProgressStore()
	}

	a.Images = repository.NewImageRepository(cfg.Storage.ImagesDir)
	renderer := render.New(render.DefaultMaxImageWidth)
	assembler := email.NewAssembler(a.Images, cfg.Email.SenderAddress, cfg.Email.SenderName)

	// a nil *RunRepository must not become a non-nil interface
	var recorder service.OutcomeRecorder
	if a.Runs != nil {
		recorder = a.Runs
	}
	merge := service.NewMergeService(renderer, assembler, recorder, service.MergeConfig{
		AttachUsedOnly: cfg.Email.AttachUsedOnly,
		SendTimeout:    cfg.Email.SendTimeout,
	}, log)

	var tokens *email.TokenStore
	if cfg.Email.Provider == email.ProviderGmail && cfg.Email.Gmail.ForgetToken && cfg.Email.Gmail.TokenFile != "" {
		tokens = email.NewTokenStore(cfg.Email.Gmail.TokenFile)
	}

	emailCfg := cfg.Email
	a.Compose = service.NewComposeService(service.ComposeDeps{
		Templates:  repository.NewTemplateRepository(cfg.Storage),
		Images:     a.Images,
		Recipients: repository.NewRecipientRepository(cfg.Storage.RecipientsFile, cfg.Storage.NameColumn, cfg.Storage.EmailColumn),
		Merge:      merge,
		Renderer:   renderer,
		NewSender: func(ctx context.Context) (email.Sender, error) {
			return email.NewSender(ctx, emailCfg)
		},
		Provider: cfg.Email.Provider,
		Tokens:   tokens,
	}, cfg.Storage.DefaultSubject, log)

	return a, nil
}

// Close releases the backend connections
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}

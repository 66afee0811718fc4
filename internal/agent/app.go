package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/consentlab/takeout-agent/internal/config"
	"github.com/consentlab/takeout-agent/internal/drive"
	"github.com/consentlab/takeout-agent/internal/extract"
	"github.com/consentlab/takeout-agent/internal/filex"
	"github.com/consentlab/takeout-agent/internal/logging"
	"github.com/consentlab/takeout-agent/internal/mail"
	"github.com/consentlab/takeout-agent/internal/models"
	"github.com/consentlab/takeout-agent/internal/redact"
	"github.com/consentlab/takeout-agent/internal/repositories/repomanager"
	"github.com/consentlab/takeout-agent/internal/sink"
	"github.com/consentlab/takeout-agent/internal/vault"
)

// App wires the agent's collaborators together: task store, vault, archive
// provider, inspector, object storage, and email.
type App struct {
	cfg      *config.Config
	log      logging.Logger
	db       *sql.DB
	repos    repomanager.RepositoryManager
	pipeline *extract.Pipeline
	agent    *Agent
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	tmpDir, err := filex.EnsureDir(cfg.TmpDir)
	if err != nil {
		return nil, err
	}
	cfg.TmpDir = tmpDir

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()

	store, err := sink.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.NewSESMailer(ctx, cfg.EmailRegion, cfg.EmailAccessKey, cfg.EmailSecretKey)
	if err != nil {
		return nil, err
	}
	notifier := mail.NewNotifier(mailer, cfg.EmailFrom, cfg.AdminEmails,
		cfg.ParticipantSubject, cfg.DigestSubject)

	inspector := redact.NewRestInspector(cfg.InspectEndpoint, cfg.InspectProjectID,
		cfg.InspectInfoTypes, cfg.InspectMinLikelihood, cfg.InspectTimeout)

	pipeline := extract.NewPipeline(
		cfg,
		vault.New(cfg.SecretKey, cfg.VaultSalt),
		drive.NewClient(cfg.DriveBaseURL, cfg.DriveTimeout, cfg.ArchivePrefix),
		redact.NewRedactor(inspector, cfg.CleaningThreads, uint64(cfg.InspectRetries)),
		sink.NewPusher(store, cfg.SearchPrefix, cfg.LocationPrefix, cfg.ProcessName, logger),
		notifier,
		sink.NewStatusMirror(store, cfg.ConsentsPrefix, uint64(cfg.StoreRetries)),
		repos.Consents(db),
		repos.Logs(db),
		logger,
	)

	agent := New(db, repos, pipeline, notifier, Options{
		PollInterval:   cfg.PollInterval,
		KeepAlive:      cfg.KeepAlive,
		DriveRetryWait: cfg.DriveRetryWait,
		DriveMaxWait:   cfg.DriveMaxWait,
	}, logger)

	return &App{
		cfg:      cfg,
		log:      logger,
		db:       db,
		repos:    repos,
		pipeline: pipeline,
		agent:    agent,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run migrates the schema and starts the polling loop. It returns when the
// loop stops, either by signal or by a fatal error in non-keep-alive mode.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.log.Info(ctx, "starting archive agent",
		"poll_interval", app.cfg.PollInterval, "keep_alive", app.cfg.KeepAlive)

	app.initSignalHandler(cancelFunc)

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	err := app.agent.Run(ctx)
	if errors.Is(err, context.Canceled) {
		app.log.Info(ctx, "agent terminated gracefully")
		return nil
	}
	return err
}

// RunLocal processes a takeout archive from the local filesystem: a new
// consent row is created for it and driven through the same pipeline the
// agent uses, minus the provider download.
func (app *App) RunLocal(ctx context.Context, studyID string, consentDT time.Time, path string, force bool) error {
	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	consentsRepo := app.repos.Consents(app.db)

	consent, err := consentsRepo.Create(ctx, &models.Consent{
		StudyID:   studyID,
		ConsentDT: consentDT,
	})
	if err != nil {
		return err
	}

	consent.Status = models.StatusProcessing
	if err := consentsRepo.SetStatus(ctx, consent.InternalID, models.StatusProcessing); err != nil {
		return err
	}

	return app.pipeline.Process(ctx, consent, &drive.LocalSource{Path: path}, force)
}

// Close releases the task store connection.
func (app *App) Close() error {
	return app.db.Close()
}

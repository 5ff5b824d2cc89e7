package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablohq/backupd/internal/adapter/platform"
	"github.com/tablohq/backupd/internal/core/repository"
	"github.com/tablohq/backupd/internal/core/service"
	"github.com/tablohq/backupd/internal/infrastructure/objectstore"
	"github.com/tablohq/backupd/internal/infrastructure/sqlite"
	"github.com/tablohq/backupd/pkg/config"
	"github.com/tablohq/backupd/pkg/logging"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "backupd",
	Short: "Backupd - Asynchronous database backup and restore orchestration",
	Long: `Backupd orchestrates backups and restores for hosted databases.

It provides:
- Asynchronous backup jobs with progress tracking and audit events
- Whole-database and table-scoped exports stored in S3-compatible storage
- Restore jobs with digest verification
- Rate-limited cross-database search batches
- Signed webhook notifications on job completion
- REST API for remote management`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load configuration
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}

		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/backupd/config.yml)")
}

// initServices initializes all services
func initServices() (*Services, error) {
	// Initialize the job ledger database
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	jobRepo := sqlite.NewJobRepository(db)
	eventRepo := sqlite.NewJobEventRepository(db)
	webhookRepo := sqlite.NewWebhookRepository(db)

	// Initialize the platform client and artifact store
	platformClient := platform.NewClient(cfg.PlatformURL, cfg.PlatformToken, 30*time.Second)
	store := objectstore.New(objectstore.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})

	// Initialize services
	jobService := service.NewJobService(jobRepo, eventRepo)
	webhookDispatcher := service.NewWebhookDispatcher(webhookRepo)
	dispatcher := service.NewDispatcher(jobService, webhookDispatcher)

	backupService := service.NewBackupService(
		jobService, platformClient, store, webhookDispatcher,
		time.Duration(cfg.ExportPollIntervalMs)*time.Millisecond, cfg.ExportPollMaxAttempts,
	)
	restoreService := service.NewRestoreService(
		jobService, platformClient, store, webhookDispatcher,
		time.Duration(cfg.IngestPollIntervalMs)*time.Millisecond, cfg.IngestPollMaxAttempts,
		cfg.StrictDigest,
	)
	catalogService := service.NewCatalogService(jobService, dispatcher, backupService, restoreService, store, platformClient)
	searchService := service.NewSearchService(platformClient, time.Duration(cfg.SearchCallIntervalMs)*time.Millisecond)

	return &Services{
		DB:                db,
		WebhookRepo:       webhookRepo,
		JobService:        jobService,
		Dispatcher:        dispatcher,
		WebhookDispatcher: webhookDispatcher,
		CatalogService:    catalogService,
		SearchService:     searchService,
	}, nil
}

// Services holds all initialized services
type Services struct {
	DB                *sqlite.DB
	WebhookRepo       repository.WebhookRepository
	JobService        *service.JobService
	Dispatcher        *service.Dispatcher
	WebhookDispatcher *service.WebhookDispatcher
	CatalogService    *service.CatalogService
	SearchService     *service.SearchService
}

// Close closes all resources
func (s *Services) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}

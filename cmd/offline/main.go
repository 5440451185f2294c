package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/core"
	"github.com/daffinity/serverless-offline/internal/function"
	"github.com/daffinity/serverless-offline/internal/storage"
	"github.com/daffinity/serverless-offline/internal/storage/notifier"
	"github.com/daffinity/serverless-offline/pkg/helper"
	"github.com/daffinity/serverless-offline/pkg/logger"
	"github.com/daffinity/serverless-offline/pkg/trace"
	"github.com/daffinity/serverless-offline/pkg/utils"
	"github.com/daffinity/serverless-offline/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	pidFile    string
	overrides  struct {
		project               string
		port                  int
		prefix                string
		stage                 string
		region                string
		corsHeaders           []string
		skipCacheInvalidation bool
		httpsProtocol         string
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.CommandName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", cnst.CommandName, version.Get())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Validate the configuration and the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.NewDiskStore(zap.NewNop(), cfg.Project)
			if err != nil {
				return err
			}
			project, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("project %s is invalid: %w", store.Path(), err)
			}
			fmt.Printf("project %s is valid: %d function(s)\n", project.Name, len(project.Functions))
			return nil
		},
	}

	reloadCmd = &cobra.Command{
		Use:   "reload",
		Short: "Ask a running " + cnst.CommandName + " to reload its project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if pidFile != "" {
				cfg.Notifier.Signal.PID = pidFile
			}
			cfg.Notifier.Role = string(config.RoleSender)
			if cfg.Notifier.Type == string(notifier.TypeNone) {
				cfg.Notifier.Type = string(notifier.TypeSignal)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			n, err := notifier.NewNotifier(ctx, zap.NewNop(), &cfg.Notifier)
			if err != nil {
				return fmt.Errorf("failed to create notifier: %w", err)
			}
			if err := n.NotifyUpdate(ctx, &notifier.ReloadEvent{Project: cfg.Project, Time: time.Now()}); err != nil {
				return fmt.Errorf("failed to send reload: %w", err)
			}
			fmt.Println("reload triggered")
			return nil
		},
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start serving the project, the default command",
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.CommandName,
		Short: "Emulate an API gateway in front of local functions",
		Long:  `Serve the HTTP endpoints of a serverless project locally, rendering request and response mapping templates around each function invocation.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.OfflineYaml, "path to configuration file, like /etc/offline/offline.yaml")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid", "", "path to PID file")
	rootCmd.PersistentFlags().StringVar(&overrides.project, "project", "", "path to the project file, overrides the configuration")
	addServeFlags(rootCmd)
	addServeFlags(startCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(renderCmd)
}

// addServeFlags registers the flags that override the serving configuration
func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&overrides.port, "port", "p", 0, "port to listen on, overrides the configuration")
	cmd.Flags().StringVar(&overrides.prefix, "prefix", "", "prefix for every route, overrides the configuration")
	cmd.Flags().StringVarP(&overrides.stage, "stage", "s", "", "stage to emulate, overrides the configuration")
	cmd.Flags().StringVarP(&overrides.region, "region", "r", "", "region to emulate, overrides the configuration")
	cmd.Flags().StringSliceVar(&overrides.corsHeaders, "cors-headers", nil, "headers allowed by CORS preflight responses")
	cmd.Flags().BoolVar(&overrides.skipCacheInvalidation, "skip-cache-invalidation", false, "keep loaded handler modules between requests")
	cmd.Flags().StringVar(&overrides.httpsProtocol, "https-protocol", "", "directory holding cert.pem and key.pem, enables HTTPS")
}

// loadConfig reads the configuration file, falling back to defaults when
// it does not exist, and applies command line overrides.
func loadConfig() (*config.OfflineConfig, error) {
	cfg, path, err := config.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load configuration %s: %w", path, err)
		}
		cfg = config.DefaultConfig()
	}

	if overrides.project != "" {
		cfg.Project = overrides.project
	}
	if overrides.port != 0 {
		cfg.Port = overrides.port
	}
	if overrides.prefix != "" {
		cfg.Prefix = config.NormalizePrefix(overrides.prefix)
	}
	if overrides.stage != "" {
		cfg.Stage = overrides.stage
	}
	if overrides.region != "" {
		cfg.Region = overrides.region
	}
	if len(overrides.corsHeaders) > 0 {
		cfg.CORSHeaders = overrides.corsHeaders
	}
	if overrides.skipCacheInvalidation {
		cfg.SkipCacheInvalidation = true
	}
	if overrides.httpsProtocol != "" {
		cfg.HTTPSProtocol = overrides.httpsProtocol
	}
	if pidFile != "" {
		cfg.PID = pidFile
	}
	cfg.Project = helper.GetProjectPath(cfg.Project, path)
	return cfg, nil
}

// newRegistry returns the in-process handlers shipped with the binary
func newRegistry(logger *zap.Logger) *function.Registry {
	registry := function.NewRegistry(logger)
	registry.RegisterDependency(cnst.BuiltinModule, func() (function.Module, error) {
		return function.Module{
			"echo": func(_ context.Context, event function.Event) (any, error) {
				return event, nil
			},
		}, nil
	})
	return registry
}

func run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Sync()

	lg.Info("starting "+cnst.CommandName,
		zap.String("version", version.Get()),
		zap.String("project", cfg.Project))

	if err := os.Setenv("IS_OFFLINE", "true"); err != nil {
		lg.Warn("failed to set IS_OFFLINE", zap.Error(err))
	}
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Tracing.Enabled {
		shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
		if err != nil {
			lg.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				lg.Error("failed to shutdown tracing", zap.Error(err))
			}
		}()
	}

	pid := utils.NewPIDManager(cfg.PID)
	if err := pid.WritePID(); err != nil {
		lg.Fatal("failed to write PID file",
			zap.String("path", pid.GetPIDFile()),
			zap.Error(err))
	}
	defer func() {
		if err := pid.RemovePID(); err != nil {
			lg.Error("failed to remove PID file", zap.Error(err))
		}
	}()

	store, err := storage.NewDiskStore(lg, cfg.Project)
	if err != nil {
		lg.Fatal("failed to open project", zap.String("path", cfg.Project), zap.Error(err))
	}

	resolver := function.NewResolver(newRegistry(lg), store.Dir(), lg)
	srv := core.NewServer(lg, cfg, store, resolver)
	if err := srv.RegisterRoutes(ctx); err != nil {
		lg.Fatal("failed to register routes", zap.Error(err))
	}

	ntf, err := notifier.NewNotifier(ctx, lg, &cfg.Notifier)
	if err != nil {
		lg.Fatal("failed to initialize notifier", zap.Error(err))
	}
	if ntf.CanReceive() {
		updateCh, err := ntf.Watch(ctx)
		if err != nil {
			lg.Fatal("failed to start watching for updates", zap.Error(err))
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-updateCh:
					if !ok {
						return
					}
					lg.Info("received reload notification", zap.String("source", event.Source))
					srv.ReloadConfigs(ctx)
				}
			}
		}()
	}

	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"sheetbridge/core/config"
	"sheetbridge/core/database"
	"sheetbridge/core/loader"
	"sheetbridge/core/logger"
	"sheetbridge/core/middleware/auth"
	"sheetbridge/core/middleware/rayid"
	"sheetbridge/core/remote"
	"sheetbridge/core/storage"
	"sheetbridge/feature/sheets"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sheetbridge server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Journal Database (Optional)
		// Without it the service still runs; applied batches just go unaudited.
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional journal database connection failed", zap.Error(err))
		} else {
			db = conn
			logg.Info("Connected to journal database")
		}

		// 4. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 5. Initialize Snapshot Archive Storage
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}

		// 6. Initialize Remote API Client
		client := remote.NewClient(cfg.Remote)

		// 7. Wire the Sheets Pipeline
		svc, err := sheets.BuildService(client, store, db, logg,
			cfg.Sheets, cfg.Quota, cfg.Cache, cfg.Remote, cfg.Storage.Bucket)
		if err != nil {
			logg.Fatal("Failed to build sheets service", zap.Error(err))
		}
		if err := svc.EnsureArchive(context.Background()); err != nil {
			logg.Fatal("Failed to prepare snapshot bucket", zap.Error(err))
		}

		// 8. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(sheets.NewFeature(svc, cfg.Sheets.Enabled))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 9. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 10. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 11. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}

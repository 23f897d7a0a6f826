// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davem/wrenchd/internal/attach"
	"github.com/davem/wrenchd/internal/config"
	"github.com/davem/wrenchd/internal/db"
	"github.com/davem/wrenchd/internal/log"
	"github.com/davem/wrenchd/internal/mail"
	"github.com/davem/wrenchd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the repair shop server",
	Long:  `Starts the HTTP server with the REST API and the realtime websocket endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg)

		logCfg := log.DefaultConfig()
		logCfg.Level = cfg.LogLevel
		if cfg.LogFile != "" {
			logCfg.Mode = "file"
			logCfg.FilePath = cfg.LogFile
		}
		if err := log.Init(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "super-secret-jwt-key-please-change-in-production"
			fmt.Println("Warning: Using default JWT secret. Set WRENCHD_JWT_SECRET in production.")
		}

		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'wrenchd init' first", cfg.DBPath)
		}

		database, err := db.New(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		// Run migrations in case schema is outdated
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		backend, err := buildAttachBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		srv, err := server.New(database, server.Config{
			JWTSecret:   cfg.JWTSecret,
			CORSOrigins: cfg.CORSOrigins,
			Mail: &mail.Config{
				Mode:     cfg.Mail.Mode,
				From:     cfg.Mail.From,
				ShopName: cfg.ShopName,
				SMTP: mail.SMTPConfig{
					Host: cfg.Mail.SMTPHost,
					Port: cfg.Mail.SMTPPort,
					User: cfg.Mail.SMTPUser,
					Pass: cfg.Mail.SMTPPass,
				},
			},
			AttachBackend: backend,
		})
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
		fmt.Printf("Starting wrenchd on %s\n", addr)
		fmt.Printf("  REST API:  http://%s/api\n", addr)
		fmt.Printf("  Realtime:  ws://%s/realtime/ws\n", addr)
		fmt.Printf("  Mail Mode: %s\n", cfg.Mail.Mode)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe(addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			fmt.Println("\nShutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// applyServeFlags overrides the environment configuration with any flags
// given on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("db") {
		cfg.DBPath, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("mail-mode") {
		cfg.Mail.Mode, _ = cmd.Flags().GetString("mail-mode")
	}
	if cmd.Flags().Changed("mail-from") {
		cfg.Mail.From, _ = cmd.Flags().GetString("mail-from")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("attach-dir") {
		cfg.Attach.Backend = "local"
		cfg.Attach.LocalPath, _ = cmd.Flags().GetString("attach-dir")
	}
}

func buildAttachBackend(ctx context.Context, cfg *config.Config) (attach.Backend, error) {
	switch cfg.Attach.Backend {
	case "s3":
		return attach.NewS3(ctx, attach.S3Config{
			Bucket:          cfg.Attach.S3Bucket,
			Region:          cfg.Attach.S3Region,
			Endpoint:        cfg.Attach.S3Endpoint,
			AccessKeyID:     cfg.Attach.S3AccessKey,
			SecretAccessKey: cfg.Attach.S3SecretKey,
			UsePathStyle:    cfg.Attach.S3UsePathStyle,
			Prefix:          cfg.Attach.S3Prefix,
		})
	default:
		return attach.NewLocal(cfg.Attach.LocalPath)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("db", "", "Path to database file")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serveCmd.Flags().String("mail-mode", "", "Email mode: log, memory, or smtp")
	serveCmd.Flags().String("mail-from", "", "Default sender email address")
	serveCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().String("attach-dir", "", "Directory for local attachment storage")
}

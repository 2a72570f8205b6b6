package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"rentchat/internal/auth"
	"rentchat/internal/config"
	"rentchat/internal/db"
	clog "rentchat/internal/log"
	"rentchat/internal/server"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "rentchat",
		Short:         "Realtime messaging backend for the rental marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				_ = os.Setenv("APP_CONFIG", configPath)
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides APP_CONFIG)")

	cmd.AddCommand(serveCmd(), migrateCmd(), tokenCmd())
	return cmd
}

// loadConfig 加载并校验配置，同时初始化日志。
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

func connectDB(cfg config.Config) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return gdb, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

// serve 启动 HTTP 服务与通道层订阅循环，收到信号后按顺序停服。
func serve(cfg config.Config) error {
	gdb, err := connectDB(cfg)
	if err != nil {
		return err
	}
	app, err := server.Build(cfg, gdb)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("channel_layer", cfg.ChannelLayer).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return app.Hub.Run(gctx)
	})
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				defer app.Close()
				return srv.Shutdown(ctx)
			},
			// 先停止订阅，再关闭连接（离线通知仍可发布），最后关闭数据库
			"websocket": func(ctx context.Context) error {
				stopRun()
				if err := app.Hub.Shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("channel layer close")
				}
				sqlDB, err := gdb.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	)

	var code int
	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
			return err
		}
		// 正常退出只由停服信号触发，等待全部停服操作完成
		code = <-wait
	case code = <-wait:
	}
	log.Info().Int("exit_code", code).Msg("shutdown complete")
	if code != 0 {
		return fmt.Errorf("shutdown exited with code %d", code)
	}
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gdb, err := connectDB(cfg)
			if err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// tokenCmd 为指定用户签发 access token，便于本地调试 WebSocket 连接。
func tokenCmd() *cobra.Command {
	var ttl int
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if ttl <= 0 {
				ttl = cfg.AccessTokenTTLMinutes
			}
			token, err := auth.GenerateAccessToken(uint(id), cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttl, "ttl", 0, "Token lifetime in minutes (defaults to ACCESS_TOKEN_TTL_MINUTES)")
	return cmd
}

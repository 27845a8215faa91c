package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/botfsm/adminsvc"
	"github.com/hrygo/botfsm/botapp/states"
	"github.com/hrygo/botfsm/fsm"
	tggateway "github.com/hrygo/botfsm/gateway/telegram"
	"github.com/hrygo/botfsm/internal/config"
	"github.com/hrygo/botfsm/internal/logging"
	"github.com/hrygo/botfsm/internal/version"
	"github.com/hrygo/botfsm/storage/memory"
	"github.com/hrygo/botfsm/storage/postgres"
	"github.com/hrygo/botfsm/storage/sqlite"
	"github.com/hrygo/botfsm/textview"
)

var rootCmd = &cobra.Command{
	Use:   "botfsmd",
	Short: "A persisted per-chat finite-state machine that drives a Telegram bot.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := &config.Config{
			Mode:     viper.GetString("mode"),
			Addr:     viper.GetString("addr"),
			Port:     viper.GetInt("port"),
			UNIXSock: viper.GetString("unix-sock"),
			Data:     viper.GetString("data"),
			Driver:   viper.GetString("driver"),
			DSN:      viper.GetString("dsn"),

			TelegramBotToken:      viper.GetString("telegram-token"),
			TelegramWebhookSecret: viper.GetString("telegram-webhook-secret"),

			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		cfg.FromEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := logging.New(cfg.Mode)

		storageBackend, closeStorage, err := openStorage(cfg)
		if err != nil {
			logger.Error("failed to open storage backend", "driver", cfg.Driver, "error", err)
			return err
		}
		defer closeStorage()

		gateway, err := tggateway.NewGateway(cfg.TelegramBotToken)
		if err != nil {
			logger.Error("failed to create telegram gateway", "error", err)
			return err
		}

		loader := textview.NewDiskLoader(defaultAssetRoot(cfg), "Sorry, this view has no content yet.")
		registry := states.NewRegistry()
		reg := prometheus.NewRegistry()
		metrics := fsm.NewMetrics(reg)

		machine := fsm.NewStateMachine(registry, storageBackend, gateway, loader,
			fsm.WithMetrics(metrics),
			fsm.WithLogger(logger),
		)

		ingress := tggateway.NewIngress(cfg.TelegramWebhookSecret)

		e := echo.New()
		e.HideBanner = true
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
		e.POST("/telegram/webhook", func(c echo.Context) error {
			if !ingress.VerifyRequest(c.Request()) {
				return echo.NewHTTPError(http.StatusUnauthorized)
			}
			action, err := ingress.HandleWebhook(c.Request())
			if err != nil {
				if err == tggateway.ErrUnsupportedUpdate {
					return c.NoContent(http.StatusOK)
				}
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			if err := machine.HandleAction(c.Request().Context(), action); err != nil {
				logger.Error("fsm: handle action failed", "error", err)
			}
			return c.NoContent(http.StatusOK)
		})

		adminsvc.NewService(storageBackend).Serve(context.Background(), e)

		addr := cfg.Addr + ":" + strconv.Itoa(cfg.Port)
		if cfg.UNIXSock != "" {
			ln, err := net.Listen("unix", cfg.UNIXSock)
			if err != nil {
				logger.Error("failed to listen on unix socket", "path", cfg.UNIXSock, "error", err)
				return err
			}
			e.Listener = ln
			addr = cfg.UNIXSock
		}
		go func() {
			if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
				logger.Error("http server stopped", "error", err)
			}
		}()

		printGreeting(cfg, addr)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	},
}

func openStorage(cfg *config.Config) (fsm.StorageBackend, func(), error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), func() {}, nil
	case "sqlite":
		backend, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	case "postgres":
		backend, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func defaultAssetRoot(cfg *config.Config) string {
	if cfg.Data != "" {
		return cfg.Data + "/views"
	}
	return "views"
}

func printGreeting(cfg *config.Config, addr string) {
	fmt.Printf("botfsmd %s started successfully!\n", cfg.Version)
	fmt.Printf("Mode: %s\n", cfg.Mode)
	fmt.Printf("Driver: %s\n", cfg.Driver)
	fmt.Printf("Listening on %s\n", addr)
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "memory")
	viper.SetDefault("port", 28088)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address the admin/webhook HTTP server binds to")
	rootCmd.PersistentFlags().Int("port", 28088, "port the admin/webhook HTTP server binds to")
	rootCmd.PersistentFlags().String("unix-sock", "", "path to a unix socket, overrides --addr and --port")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "memory", "storage driver (memory, sqlite, postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (ignored for the memory driver)")
	rootCmd.PersistentFlags().String("telegram-token", "", "Telegram Bot API token")
	rootCmd.PersistentFlags().String("telegram-webhook-secret", "", "expected Telegram webhook secret-token header value")

	bindings := []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "telegram-token", "telegram-webhook-secret"}
	for _, name := range bindings {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("botfsm")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

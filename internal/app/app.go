package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/config"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/infra/coingecko"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/infra/db"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/repository/favorites"
	repopg "github.com/NastyaGoryachaya/coin-dashboard/internal/repository/postgres"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/repository/rediscache"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/scheduler"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/dashboard"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/history"
	botpkg "github.com/NastyaGoryachaya/coin-dashboard/internal/transport/bot"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/transport/httptransport"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db    *pgxpool.Pool
	redis *redis.Client
	e     *echo.Echo
	serv  *http.Server

	state   *dashboard.State
	updater *scheduler.Scheduler

	bot *botpkg.Bot
}

func NewApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	app := &App{cfg: cfg, log: log}

	store := favorites.NewStore(cfg.Favorites.DataDir, cfg.Favorites.FileName)
	tracker := history.NewTracker(cfg.Refresh.MaxHistoryPoints)
	app.state = dashboard.NewState(store, tracker, cfg.Refresh.DefaultInterval, log)

	// Ошибка чтения избранного не фатальна: показываем её в статусе
	if err := store.Load(); err != nil {
		log.Error("favorites load failed", slog.String("path", store.Path()), slog.String("error", err.Error()))
		app.state.SetStatus("Filesystem error (load): " + err.Error())
	} else {
		log.Info("favorites loaded", slog.String("path", store.Path()), slog.Int("count", store.Len()))
	}

	var sinks []scheduler.SnapshotSink

	if cfg.Postgres.Enabled {
		pool, err := db.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres init failed", slog.String("error", err.Error()))
			return nil, err
		}
		app.db = pool

		prices := repopg.NewPriceRepository(pool)
		series, err := prices.LoadRecent(ctx, cfg.Refresh.MaxHistoryPoints)
		if err != nil {
			// без тёплого старта история просто начнётся с нуля
			log.Warn("history warm start failed", slog.String("error", err.Error()))
		} else {
			app.state.SeedHistory(series)
			log.Info("history restored from archive", slog.Int("symbols", len(series)))
		}
		sinks = append(sinks, prices)
	}

	var cache httptransport.SnapshotCache
	if cfg.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Error("redis init failed", slog.String("error", err.Error()))
			app.closeStores()
			return nil, err
		}
		app.redis = client

		snapshots := rediscache.NewSnapshotCache(client, cfg.Redis.Key, 2*cfg.Refresh.MaxInterval)
		sinks = append(sinks, snapshots)
		cache = snapshots
	}

	gateway := coingecko.NewClient(cfg.CoinGecko, log)
	app.updater = scheduler.NewScheduler(gateway, app.state, scheduler.Settings{
		DefaultInterval: cfg.Refresh.DefaultInterval,
		MaxInterval:     cfg.Refresh.MaxInterval,
		SinkTimeout:     cfg.Refresh.SinkTimeout,
	}, log, sinks...)

	if cfg.Server.Enabled {
		e := echo.New()
		e.HideBanner = true
		app.e = e

		h := httptransport.NewDashboardHandler(log, app.state, cache, cfg.Server.ReadTimeout)
		h.RegisterRoutes(e)

		app.serv = &http.Server{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			Handler:      e,
		}
	}

	if cfg.Telegram.Enabled {
		// Если бот включён, отсутствие токена — ошибка конфигурации
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			log.Error("telegram enabled but TELEGRAM_BOT_TOKEN is empty")
			app.closeStores()
			return nil, errors.New("telegram token is empty")
		}

		botApp, err := botpkg.New(cfg.Telegram, app.state, log)
		if err != nil {
			log.Error("telegram init failed", slog.String("error", err.Error()))
			app.closeStores()
			return nil, err
		}
		app.bot = botApp
	}

	log.Info("app initialized",
		slog.Bool("http_enabled", app.serv != nil),
		slog.Bool("postgres_enabled", app.db != nil),
		slog.Bool("redis_enabled", app.redis != nil),
		slog.Bool("bot_attached", app.bot != nil),
		slog.Int("snapshot_sinks", len(sinks)),
	)
	return app, nil
}

// Run блокируется до отмены ctx; хранилища закрываются после остановки планировщика.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("starting updater")
	g.Go(func() error {
		a.updater.Start(gctx)
		return nil
	})

	if a.serv != nil {
		a.log.Info("starting server", slog.String("addr", a.cfg.Server.Addr))
		g.Go(func() error {
			if err := a.e.StartServer(a.serv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.shutdownServer()
		})
	}

	if a.bot != nil {
		a.log.Info("starting bot")
		g.Go(func() error {
			a.bot.Start(gctx)
			return nil
		})
	}

	err := g.Wait()
	a.closeStores()
	a.log.Info("application stopped")
	return err
}

func (a *App) shutdownServer() error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.serv.Shutdown(shCtx); err != nil {
		a.log.Error("http shutdown error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (a *App) closeStores() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", slog.String("error", err.Error()))
		}
		a.redis = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

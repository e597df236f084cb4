package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/config"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	"gopkg.in/telebot.v4"
)

// Dashboard — общее состояние дашборда, как его видит бот.
type Dashboard interface {
	Snapshot() domain.Snapshot
	Coin(symbol string) (domain.Coin, error)
	GetHistory(symbol string) []float64
	IsFavorite(symbol string) bool
	Favorites() []string
	ToggleFavorite(symbol string) (bool, error)
}

// Bot — Telegram-представление дашборда
type Bot struct {
	bot    *telebot.Bot
	svc    Dashboard
	logger *slog.Logger
}

// New создаёт бота и регистрирует команды
func New(cfg config.TelegramConfig, svc Dashboard, logger *slog.Logger) (*Bot, error) {
	const defaultPollTimeout = 10 * time.Second
	timeout := cfg.LongPollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	b, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.Token,
		Poller: &telebot.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		bot:    b,
		svc:    svc,
		logger: logger,
	}

	// маршруты команд
	b.Handle("/start", bot.handleStart)
	b.Handle("/rates", bot.handleRates)
	b.Handle("/fav", bot.handleFav)
	b.Handle("/favs", bot.handleFavs)
	b.Handle("/status", bot.handleStatus)
	return bot, nil
}

// Start запускает long polling и блокируется до отмены контекста
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("bot started")
	go func() {
		<-ctx.Done()
		// Stop ждёт, пока цикл Start примет сигнал, поэтому вызывается ровно один раз
		b.bot.Stop()
	}()
	b.bot.Start()
	b.logger.Info("bot stopped")
}

package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/ports/errcode"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/dashboard"
	"gopkg.in/telebot.v4"
)

// handleStart — отправляет справку по доступным командам бота
func (b *Bot) handleStart(c telebot.Context) error {
	return c.Send("Привет! Доступные команды:\n" +
		"/rates - топ монет по капитализации\n" +
		"/rates {symbol|поиск} - подробности по монете или поиск по имени\n" +
		"/fav {symbol} - добавить/убрать из избранного\n" +
		"/favs - только избранные монеты\n" +
		"/status - состояние обновления данных")
}

func (b *Bot) handleRates(c telebot.Context) error {
	return c.Send(b.ratesMessage(c.Args()))
}

func (b *Bot) handleFav(c telebot.Context) error {
	b.logger.Debug("bot: /fav received",
		slog.Int64("chat_id", c.Chat().ID),
		slog.String("text", c.Text()),
	)
	return c.Send(b.favMessage(c.Args()))
}

func (b *Bot) handleFavs(c telebot.Context) error {
	return c.Send(b.favoritesMessage())
}

func (b *Bot) handleStatus(c telebot.Context) error {
	return c.Send(formatStatus(b.svc.Snapshot()))
}

// ratesMessage — без аргументов весь список, с символом подробности, иначе поиск по имени.
func (b *Bot) ratesMessage(args []string) string {
	snap := b.svc.Snapshot()
	if len(args) == 0 {
		if len(snap.Coins) == 0 {
			return translateBotError(errcode.NotFoundCoin) + "\n" + snap.Status
		}
		return formatCoinList(snap.Coins, b.svc.IsFavorite)
	}

	query := strings.Join(args, " ")
	if coin, err := b.svc.Coin(query); err == nil {
		return formatCoinDetails(coin, b.svc.IsFavorite(coin.Symbol), b.svc.GetHistory(coin.Symbol))
	}

	found := dashboard.Filter(snap.Coins, query, false, b.svc.IsFavorite)
	if len(found) == 0 {
		return translateBotError(errcode.NotFoundCoin)
	}
	return formatCoinList(found, b.svc.IsFavorite)
}

func (b *Bot) favMessage(args []string) string {
	if len(args) != 1 {
		return "Укажи символ монеты: /fav BTC"
	}
	symbol := dashboard.NormalizeSymbol(args[0])

	on, err := b.svc.ToggleFavorite(symbol)
	if err != nil {
		b.logger.Warn("bot: /fav failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return translateBotError(fromServiceError(err))
	}
	if on {
		return fmt.Sprintf("%s добавлена в избранное", symbol)
	}
	return fmt.Sprintf("%s удалена из избранного", symbol)
}

func (b *Bot) favoritesMessage() string {
	if len(b.svc.Favorites()) == 0 {
		return "Избранное пусто. Добавить: /fav BTC"
	}
	snap := b.svc.Snapshot()
	found := dashboard.Filter(snap.Coins, "", true, b.svc.IsFavorite)
	if len(found) == 0 {
		return "Избранные монеты отсутствуют в текущем списке: " + strings.Join(b.svc.Favorites(), ", ")
	}
	return formatCoinList(found, b.svc.IsFavorite)
}

func fromServiceError(err error) errcode.Code {
	switch {
	case errors.Is(err, errs.ErrCoinNotFound):
		return errcode.NotFoundCoin
	case errors.Is(err, errs.ErrInvalidSymbol):
		return errcode.BadRequest
	case errors.Is(err, errs.ErrFavoritesIO):
		return errcode.FavoritesIO
	default:
		return errcode.Internal
	}
}

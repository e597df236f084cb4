package bot

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/dashboard"
)

const (
	favoriteMark = "★"
	sparkWidth   = 40
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// formatCoinLine — короткая строка списка
func formatCoinLine(c domain.Coin, favorite bool) string {
	mark := " "
	if favorite {
		mark = favoriteMark
	}
	return fmt.Sprintf("%s %s | %s | %s | %+.2f%%",
		mark,
		c.Symbol,
		c.Name,
		humanPrice(c.Price),
		c.Change24h,
	)
}

func formatCoinList(coins []domain.Coin, isFavorite func(string) bool) string {
	var bld strings.Builder
	for _, c := range coins {
		bld.WriteString(formatCoinLine(c, isFavorite(c.Symbol)))
		bld.WriteByte('\n')
	}
	return bld.String()
}

// formatCoinDetails — подробное сообщение для /rates {symbol}
func formatCoinDetails(c domain.Coin, favorite bool, history []float64) string {
	title := fmt.Sprintf("[%s] %s", c.Symbol, c.Name)
	if favorite {
		title += " " + favoriteMark
	}
	return fmt.Sprintf(
		"%s\nТекущая цена: %s\nИзменение за 24ч: %+.2f%%\nКапитализация: %s\nГрафик: %s",
		title,
		humanPrice(c.Price),
		c.Change24h,
		humanCap(c.MarketCap),
		sparkline(history),
	)
}

func formatStatus(snap domain.Snapshot) string {
	updated := "ещё не было"
	if !snap.UpdatedAt.IsZero() {
		updated = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s\nИнтервал: %dс\nМонет: %d\nОбновлено: %s",
		snap.Status,
		snap.IntervalSeconds(),
		len(snap.Coins),
		updated,
	)
}

// humanPrice — два знака для крупных цен, больше для мелких монет.
func humanPrice(v float64) string {
	switch {
	case v >= 1 || v == 0:
		return fmt.Sprintf("$%.2f", v)
	case v >= 0.01:
		return fmt.Sprintf("$%.4f", v)
	default:
		return fmt.Sprintf("$%.8f", v)
	}
}

// humanCap — капитализация в T/B/M; 0 означает "нет данных".
func humanCap(v float64) string {
	switch {
	case v <= 0:
		return "н/д"
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// sparkline — текстовый график последних точек; меньше двух точек — "сбор данных".
func sparkline(points []float64) string {
	if !dashboard.GraphReady(points) {
		return "сбор данных..."
	}
	if len(points) > sparkWidth {
		points = points[len(points)-sparkWidth:]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}

	out := make([]rune, len(points))
	top := len(sparkLevels) - 1
	for i, p := range points {
		level := top / 2
		if hi > lo {
			level = int(math.Round((p - lo) / (hi - lo) * float64(top)))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

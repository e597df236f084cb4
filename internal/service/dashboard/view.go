package dashboard

import (
	"strings"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
)

// MinGraphPoints — меньше двух точек график не строится ("collecting data").
const MinGraphPoints = 2

// Filter — поиск по имени/символу без учёта регистра и режим "только избранное".
// Порядок монет сохраняется.
func Filter(coins []domain.Coin, query string, favoritesOnly bool, isFavorite func(string) bool) []domain.Coin {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Coin, 0, len(coins))
	for _, c := range coins {
		if favoritesOnly && (isFavorite == nil || !isFavorite(c.Symbol)) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Name), q) &&
			!strings.Contains(strings.ToLower(c.Symbol), q) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// GraphReady — достаточно ли точек для графика.
func GraphReady(points []float64) bool {
	return len(points) >= MinGraphPoints
}

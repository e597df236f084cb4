package httptransport

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/ports/errcode"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/dashboard"
	"github.com/labstack/echo/v4"
)

// Percent — процентное изменение, в JSON выводится с 3 знаками после запятой.
type Percent float64

func (p Percent) MarshalJSON() ([]byte, error) {
	v := float64(p)
	return []byte(strconv.FormatFloat(v, 'f', 3, 64)), nil
}

// Dashboard — то, что слой представления видит из общего состояния.
type Dashboard interface {
	Snapshot() domain.Snapshot
	Coin(symbol string) (domain.Coin, error)
	GetHistory(symbol string) []float64
	IsFavorite(symbol string) bool
	Favorites() []string
	ToggleFavorite(symbol string) (bool, error)
}

// SnapshotCache — последний снапшот из внешнего кэша (Redis), может отсутствовать.
type SnapshotCache interface {
	Latest(ctx context.Context) (domain.Snapshot, error)
}

// Coin — DTO монеты в ответах API.
type Coin struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change24h Percent `json:"change_24h"`
	MarketCap float64 `json:"market_cap"`
	Favorite  bool    `json:"favorite"`
}

// Snapshot — DTO снапшота: список монет, статус и текущий интервал.
type Snapshot struct {
	Coins           []Coin    `json:"coins"`
	Status          string    `json:"status"`
	IntervalSeconds int       `json:"interval_seconds"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// History — точки графика; collecting=true, пока точек меньше двух.
type History struct {
	Symbol     string    `json:"symbol"`
	Points     []float64 `json:"points"`
	Collecting bool      `json:"collecting"`
}

// CoinDetails — выбранная монета вместе с историей.
type CoinDetails struct {
	Coin
	History History `json:"history"`
}

func makeCoin(c domain.Coin, favorite bool) Coin {
	return Coin{
		ID:        c.ID,
		Symbol:    c.Symbol,
		Name:      c.Name,
		Price:     c.Price,
		Change24h: Percent(c.Change24h),
		MarketCap: c.MarketCap,
		Favorite:  favorite,
	}
}

func makeHistory(symbol string, points []float64) History {
	if points == nil {
		points = []float64{}
	}
	return History{
		Symbol:     symbol,
		Points:     points,
		Collecting: !dashboard.GraphReady(points),
	}
}

// DashboardHandler — HTTP‑handler дашборда.
type DashboardHandler struct {
	logger  *slog.Logger
	svc     Dashboard
	cache   SnapshotCache
	timeout time.Duration
}

// NewDashboardHandler — cache может быть nil, тогда /snapshot/cached отвечает 404.
func NewDashboardHandler(logger *slog.Logger, svc Dashboard, cache SnapshotCache, timeout time.Duration) *DashboardHandler {
	if logger == nil {
		log.Fatal("nil logger")
	}
	if svc == nil {
		log.Fatal("nil service")
	}
	// Задаём таймаут по умолчанию, если он не задан
	if timeout <= 0 {
		timeout = time.Second * 3
	}
	return &DashboardHandler{
		logger:  logger,
		svc:     svc,
		cache:   cache,
		timeout: timeout,
	}
}

func (h *DashboardHandler) RegisterRoutes(r interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}) {
	r.GET("/snapshot", h.GetSnapshot)
	r.GET("/snapshot/cached", h.GetCachedSnapshot)
	r.GET("/coins", h.GetCoins)
	r.GET("/coins/:symbol", h.GetCoin)
	r.GET("/history/:symbol", h.GetHistory)
	r.GET("/favorites", h.GetFavorites)
	r.POST("/favorites/:symbol/toggle", h.ToggleFavorite)
}

func (h *DashboardHandler) GetSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, h.makeSnapshot(h.svc.Snapshot()))
}

func (h *DashboardHandler) GetCachedSnapshot(c echo.Context) error {
	if h.cache == nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "cache_disabled",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	snap, err := h.cache.Latest(ctx)
	if err != nil {
		return h.fail(c, "GetCachedSnapshot", "", err)
	}
	return c.JSON(http.StatusOK, h.makeSnapshot(snap))
}

// GetCoins — ?q= ищет по имени и символу, ?favorites=true оставляет только избранное.
func (h *DashboardHandler) GetCoins(c echo.Context) error {
	favoritesOnly := false
	if raw := c.QueryParam("favorites"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "invalid_favorites_flag",
			})
		}
		favoritesOnly = v
	}

	snap := h.svc.Snapshot()
	items := dashboard.Filter(snap.Coins, c.QueryParam("q"), favoritesOnly, h.svc.IsFavorite)

	out := make([]Coin, 0, len(items))
	for _, item := range items {
		out = append(out, makeCoin(item, h.svc.IsFavorite(item.Symbol)))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DashboardHandler) GetCoin(c echo.Context) error {
	symbol := dashboard.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "symbol_required",
		})
	}

	coin, err := h.svc.Coin(symbol)
	if err != nil {
		return h.fail(c, "GetCoin", symbol, err)
	}
	return c.JSON(http.StatusOK, CoinDetails{
		Coin:    makeCoin(coin, h.svc.IsFavorite(symbol)),
		History: makeHistory(symbol, h.svc.GetHistory(symbol)),
	})
}

// GetHistory — история известна и для монет, выпавших из последнего ответа API.
func (h *DashboardHandler) GetHistory(c echo.Context) error {
	symbol := dashboard.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "symbol_required",
		})
	}

	points := h.svc.GetHistory(symbol)
	if points == nil {
		if _, err := h.svc.Coin(symbol); err != nil {
			return h.fail(c, "GetHistory", symbol, err)
		}
	}
	return c.JSON(http.StatusOK, makeHistory(symbol, points))
}

func (h *DashboardHandler) GetFavorites(c echo.Context) error {
	favs := h.svc.Favorites()
	if favs == nil {
		favs = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"favorites": favs,
	})
}

func (h *DashboardHandler) ToggleFavorite(c echo.Context) error {
	symbol := dashboard.NormalizeSymbol(c.Param("symbol"))

	on, err := h.svc.ToggleFavorite(symbol)
	if err != nil {
		return h.fail(c, "ToggleFavorite", symbol, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"symbol":   symbol,
		"favorite": on,
	})
}

func (h *DashboardHandler) makeSnapshot(snap domain.Snapshot) Snapshot {
	coins := make([]Coin, 0, len(snap.Coins))
	for _, c := range snap.Coins {
		coins = append(coins, makeCoin(c, h.svc.IsFavorite(c.Symbol)))
	}
	return Snapshot{
		Coins:           coins,
		Status:          snap.Status,
		IntervalSeconds: snap.IntervalSeconds(),
		UpdatedAt:       snap.UpdatedAt,
	}
}

// fail — единая трансляция ошибок состояния в HTTP-ответ.
func (h *DashboardHandler) fail(c echo.Context, op, symbol string, err error) error {
	switch FromServiceError(err) {
	case errcode.NotFoundCoin:
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":  "coin_not_found",
			"symbol": symbol,
		})
	case errcode.NotFoundCache:
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "snapshot_not_cached",
		})
	case errcode.BadRequest:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "bad_request",
		})
	case errcode.FavoritesIO:
		h.logger.Error("favorites storage failed",
			slog.String("op", op),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "favorites_storage_error",
		})
	default:
		h.logger.Error("request failed",
			slog.String("op", op),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "internal_server_error",
		})
	}
}

package dashboard

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/service/history"
)

// StatusInitializing — статус до первого ответа API.
const StatusInitializing = "Initializing..."

// FavoritesStore — сквозное хранилище избранного.
type FavoritesStore interface {
	Toggle(symbol string) (bool, error)
	Contains(symbol string) bool
	List() []string
}

// State — общее состояние дашборда: снапшот, история и избранное под одним мьютексом.
// Пишет снапшот только планировщик; слой представления читает копии.
type State struct {
	mu sync.RWMutex

	coins     []domain.Coin
	status    string
	interval  time.Duration
	updatedAt time.Time

	history   *history.Tracker
	favorites FavoritesStore

	clock  Clock
	logger *slog.Logger
}

func NewState(favorites FavoritesStore, tracker *history.Tracker, interval time.Duration, logger *slog.Logger) *State {
	return NewStateWithClock(favorites, tracker, interval, NewRealClock(), logger)
}

// NewStateWithClock - Конструктор для тестов: позволяет подставить фиксированные "часы".
func NewStateWithClock(favorites FavoritesStore, tracker *history.Tracker, interval time.Duration, clk Clock, logger *slog.Logger) *State {
	return &State{
		status:    StatusInitializing,
		interval:  interval,
		history:   tracker,
		favorites: favorites,
		clock:     clk,
		logger:    logger,
	}
}

// Snapshot — согласованная копия (монеты, статус, интервал).
func (s *State) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		Coins:     cloneCoins(s.coins),
		Status:    s.status,
		Interval:  s.interval,
		UpdatedAt: s.updatedAt,
	}
}

// GetSnapshot — то же, что Snapshot, в виде тройки для слоя представления.
func (s *State) GetSnapshot() ([]domain.Coin, string, int) {
	snap := s.Snapshot()
	return snap.Coins, snap.Status, snap.IntervalSeconds()
}

// Commit — успешный fetch: монеты заменяются целиком, история дописывается,
// статус и интервал обновляются в одной критической секции.
func (s *State) Commit(coins []domain.Coin, status string, interval time.Duration) domain.Snapshot {
	fresh := cloneCoins(coins)
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.coins = fresh
	// одна точка на символ за fetch: при дублях берём первую запись
	recorded := make(map[string]struct{}, len(fresh))
	for _, c := range fresh {
		if _, dup := recorded[c.Symbol]; dup {
			continue
		}
		recorded[c.Symbol] = struct{}{}
		s.history.Record(c.Symbol, c.Price)
	}
	s.status = status
	s.interval = interval
	s.updatedAt = now

	return domain.Snapshot{
		Coins:     cloneCoins(fresh),
		Status:    status,
		Interval:  interval,
		UpdatedAt: now,
	}
}

// Fail — неудачный fetch: список монет не трогаем.
func (s *State) Fail(status string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.interval = interval
}

// SetStatus — сообщение без изменения данных (ошибки файловой системы и т.п.).
func (s *State) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Coin — монета из текущего снапшота по символу.
func (s *State) Coin(symbol string) (domain.Coin, error) {
	sym := NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.coins {
		if c.Symbol == sym {
			return c, nil
		}
	}
	return domain.Coin{}, errs.ErrCoinNotFound
}

// GetHistory — копия истории цен; nil, если данные ещё собираются.
func (s *State) GetHistory(symbol string) []float64 {
	sym := NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Get(sym)
}

// SeedHistory — тёплый старт истории из архива.
func (s *State) SeedHistory(series map[string][]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, prices := range series {
		s.history.Seed(NormalizeSymbol(sym), prices)
	}
}

func (s *State) IsFavorite(symbol string) bool {
	sym := NormalizeSymbol(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites.Contains(sym)
}

// Favorites — отсортированный список избранного.
func (s *State) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites.List()
}

// ToggleFavorite — переключает символ и синхронно сохраняет на диск.
// Ошибка записи попадает в статус и не роняет процесс.
func (s *State) ToggleFavorite(symbol string) (bool, error) {
	sym := NormalizeSymbol(symbol)
	if !ValidSymbol(sym) {
		return false, errs.ErrInvalidSymbol
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	on, err := s.favorites.Toggle(sym)
	if err != nil {
		s.status = "Filesystem error (save): " + err.Error()
		s.logger.Error("favorites save failed", slog.String("symbol", sym), slog.Any("err", err))
		return on, fmt.Errorf("%w: %w", errs.ErrFavoritesIO, err)
	}
	s.logger.Info("favorite toggled", slog.String("symbol", sym), slog.Bool("favorite", on))
	return on, nil
}

// NormalizeSymbol — тикеры храним в верхнем регистре.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidSymbol — непустой тикер без пробелов и управляющих символов:
// файл избранного построчный, такой символ в нём не сохранится как есть.
func ValidSymbol(sym string) bool {
	return sym != "" && !strings.ContainsFunc(sym, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}

func cloneCoins(in []domain.Coin) []domain.Coin {
	if in == nil {
		return nil
	}
	out := make([]domain.Coin, len(in))
	copy(out, in)
	return out
}

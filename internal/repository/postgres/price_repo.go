package postgres

import (
	"context"
	"fmt"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceRepo — архив котировок (таблица coin_prices).
type PriceRepo struct {
	db *pgxpool.Pool
}

// NewPriceRepository - Создаёт новый репозиторий цен на основе пула соединений.
func NewPriceRepository(db *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{db: db}
}

// SaveSnapshot - Сохраняет все монеты успешного снапшота одним батчем.
func (r *PriceRepo) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if len(snap.Coins) == 0 {
		return nil
	}
	query := `
            INSERT INTO coin_prices (symbol, coin_id, name, price, change_24h, market_cap, fetched_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            `

	batch := &pgx.Batch{}
	for _, c := range snap.Coins {
		batch.Queue(query, c.Symbol, c.ID, c.Name, c.Price, c.Change24h, c.MarketCap, snap.UpdatedAt)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for range snap.Coins {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert coin price: %w", err)
		}
	}
	return nil
}

// LoadRecent - Последние limit цен по каждой монете, от старых к новым.
func (r *PriceRepo) LoadRecent(ctx context.Context, limit int) (map[string][]float64, error) {
	query := `
        SELECT symbol, price
        FROM (
            SELECT symbol, price, fetched_at,
                   ROW_NUMBER() OVER (PARTITION BY symbol ORDER BY fetched_at DESC) AS rn
            FROM coin_prices
        ) recent
        WHERE rn <= $1
        ORDER BY symbol, fetched_at
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.Price
	for rows.Next() {
		var p domain.Price
		if err := rows.Scan(&p.CoinSymbol, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupBySymbol(points), nil
}

// groupBySymbol - Раскладывает упорядоченные точки по символам, порядок сохраняется.
func groupBySymbol(points []domain.Price) map[string][]float64 {
	out := make(map[string][]float64)
	for _, p := range points {
		out[p.CoinSymbol] = append(out[p.CoinSymbol], p.Value)
	}
	return out
}

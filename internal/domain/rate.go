package domain

import "time"

// Coin — одна запись рейтинга монет из ответа API.
// Значения неизменяемы: каждый fetch создаёт новый срез.
type Coin struct {
	ID        string  `json:"id"`         // bitcoin, ethereum
	Symbol    string  `json:"symbol"`     // BTC, ETH
	Name      string  `json:"name"`       // Bitcoin
	Price     float64 `json:"price"`      // Текущая цена в USD
	Change24h float64 `json:"change_24h"` // Изменение за 24ч в процентах
	MarketCap float64 `json:"market_cap"` // Капитализация, 0 если неизвестна
}

// Snapshot — согласованный срез состояния для слоя представления.
type Snapshot struct {
	Coins     []Coin        `json:"coins"`
	Status    string        `json:"status"`
	Interval  time.Duration `json:"-"`
	UpdatedAt time.Time     `json:"updated_at"` // Время последнего успешного fetch
}

// IntervalSeconds — текущий интервал обновления в секундах.
func (s Snapshot) IntervalSeconds() int {
	return int(s.Interval / time.Second)
}

// Price — историческая точка цены монеты (архив в Postgres).
type Price struct {
	CoinSymbol string    `json:"coin_symbol"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NastyaGoryachaya/coin-dashboard/internal/config"
	"github.com/NastyaGoryachaya/coin-dashboard/internal/domain"
	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
)

// maxBodySize — ответ на 10..250 монет весит десятки килобайт.
const maxBodySize = 4 << 20

type Client struct {
	cfg        config.CoinGeckoConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// marketRecord — одна запись /coins/markets.
// Указатели различают «поле отсутствует» и нулевое значение.
type marketRecord struct {
	ID           *string  `json:"id"`
	Symbol       *string  `json:"symbol"`
	Name         *string  `json:"name"`
	CurrentPrice *float64 `json:"current_price"`
	Change24hPct *float64 `json:"price_change_percentage_24h"`
	MarketCap    *float64 `json:"market_cap"`
}

// NewClient — клиент CoinGecko с раздельными таймаутами на соединение и чтение.
func NewClient(cfg config.CoinGeckoConfig, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          2,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
		},
		logger: logger,
	}
}

// FetchTopCoins — один запрос топ-N монет по капитализации.
// Все ошибки возвращаются как *errs.FetchError.
func (c *Client) FetchTopCoins(ctx context.Context) ([]domain.Coin, error) {
	endpoint, err := c.marketsURL()
	if err != nil {
		return nil, &errs.FetchError{Kind: errs.ErrUnreachable, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &errs.FetchError{Kind: errs.ErrUnreachable, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	ua := c.cfg.UserAgent
	if ua == "" {
		ua = "coin-dashboard/1.0"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errs.FetchError{Kind: errs.ErrUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// тело ошибки не нужно, но соединение стоит вернуть в пул
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, errs.NewStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &errs.FetchError{Kind: errs.ErrUnreachable, Err: fmt.Errorf("reading body: %w", err)}
	}
	return c.decode(body)
}

func (c *Client) marketsURL() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u = u.JoinPath("coins", "markets")

	currency := strings.ToLower(c.cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	q := u.Query()
	q.Set("vs_currency", currency)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(c.cfg.PerPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decode — разбор тела: пустое тело, не-список и битые записи различаются.
// Битые записи пропускаются; ошибка только если не осталось ни одной.
func (c *Client) decode(body []byte) ([]domain.Coin, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &errs.FetchError{Kind: errs.ErrEmptyBody}
	}

	// null разбирается в nil-срез без ошибки, но это не список
	if bytes.Equal(body, []byte("null")) {
		return nil, &errs.FetchError{Kind: errs.ErrMalformedSchema, Err: errors.New("api returned null")}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &errs.FetchError{Kind: errs.ErrMalformedSchema, Err: errors.New("api did not return a list")}
	}
	if len(raw) == 0 {
		return nil, &errs.FetchError{Kind: errs.ErrEmptyBody, Err: errors.New("api returned an empty list")}
	}

	coins := make([]domain.Coin, 0, len(raw))
	var firstErr error
	for i, item := range raw {
		coin, err := parseRecord(item)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			c.logger.Warn("coingecko: skipping record", slog.Int("index", i), slog.Any("err", err))
			continue
		}
		coins = append(coins, coin)
	}

	if len(coins) == 0 {
		return nil, &errs.FetchError{Kind: errs.ErrRecordParse, Err: firstErr}
	}
	return coins, nil
}

func parseRecord(item json.RawMessage) (domain.Coin, error) {
	var rec marketRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return domain.Coin{}, fmt.Errorf("record is not an object: %w", err)
	}

	switch {
	case rec.ID == nil || *rec.ID == "":
		return domain.Coin{}, errors.New("missing id")
	case rec.Symbol == nil || *rec.Symbol == "":
		return domain.Coin{}, fmt.Errorf("%s: missing symbol", *rec.ID)
	case rec.Name == nil:
		return domain.Coin{}, fmt.Errorf("%s: missing name", *rec.ID)
	case rec.CurrentPrice == nil:
		return domain.Coin{}, fmt.Errorf("%s: missing current_price", *rec.ID)
	}

	coin := domain.Coin{
		ID:     *rec.ID,
		Symbol: strings.ToUpper(*rec.Symbol),
		Name:   *rec.Name,
		Price:  *rec.CurrentPrice,
	}
	if rec.Change24hPct != nil {
		coin.Change24h = *rec.Change24hPct
	}
	if rec.MarketCap != nil {
		coin.MarketCap = *rec.MarketCap
	}
	return coin, nil
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Ошибки источника данных (gateway).
var (
	ErrUnreachable     = errors.New("source unreachable")
	ErrHTTPStatus      = errors.New("unexpected http status")
	ErrRateLimited     = errors.New("rate limited")
	ErrEmptyBody       = errors.New("empty response body")
	ErrMalformedSchema = errors.New("malformed response schema")
	ErrRecordParse     = errors.New("record parse error")
)

// Ошибки состояния дашборда.
var (
	ErrCoinNotFound  = errors.New("coin not found")
	ErrFavoritesIO   = errors.New("favorites storage error")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrNoSnapshot    = errors.New("no cached snapshot")
	ErrInternal      = errors.New("internal error")
)

// FetchError — типизированная ошибка одного запроса к API.
// Kind — один из sentinel-ов выше, Err — исходная причина (может быть nil).
type FetchError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap позволяет errors.Is находить и вид ошибки, и причину.
// HTTP 429 совпадает и с ErrRateLimited, и с ErrHTTPStatus.
func (e *FetchError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Kind == ErrRateLimited {
		out = append(out, ErrHTTPStatus)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewStatusError строит ошибку по коду ответа; 429 выделяется отдельно.
func NewStatusError(code int) *FetchError {
	if code == http.StatusTooManyRequests {
		return &FetchError{Kind: ErrRateLimited, StatusCode: code}
	}
	return &FetchError{Kind: ErrHTTPStatus, StatusCode: code}
}

// StatusCode достаёт HTTP-код из цепочки ошибок, 0 если его нет.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

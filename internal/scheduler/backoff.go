package scheduler

import (
	"errors"
	"strings"
	"time"

	errs "github.com/NastyaGoryachaya/coin-dashboard/internal/errors"
)

// Outcome — результат одной итерации fetch.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failure"
	}
}

// Classify — 429 или сообщение про лимит считаются rate limit, остальное — обычная ошибка.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, errs.ErrRateLimited):
		return OutcomeRateLimited
	case mentionsRateLimit(err.Error()):
		return OutcomeRateLimited
	default:
		return OutcomeFailure
	}
}

func mentionsRateLimit(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "429") || strings.Contains(msg, "limit")
}

// NextInterval — удвоение до max при rate limit, иначе возврат к def.
// Прочие ошибки backoff не включают: повтор идёт с обычной частотой.
func NextInterval(o Outcome, prev, def, max time.Duration) time.Duration {
	if o != OutcomeRateLimited {
		return def
	}
	if prev <= 0 {
		prev = def
	}
	if prev > max/2 {
		return max
	}
	return prev * 2
}

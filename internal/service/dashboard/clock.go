package dashboard

import "time"

// Clock — источник времени для updated_at снапшота; в тестах State подменяется фиксированным.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Now — момент успешного fetch в UTC.
func (realClock) Now() time.Time { return time.Now().UTC() }

// NewRealClock — часы по умолчанию для NewState.
func NewRealClock() Clock {
	return realClock{}
}

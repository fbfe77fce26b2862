package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/inputguard/internal/domain"
)

// SystemClock implements domain.Clock with the time package.
type SystemClock struct{}

// NewSystemClock creates a wall clock.
func NewSystemClock() domain.Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ domain.Clock = SystemClock{}

package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time so refresh decisions are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystem returns the wall clock.
func NewSystem() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystem),
)

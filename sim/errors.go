package sim

import (
	"errors"
	"fmt"
)

// ErrNonPositiveDt is returned by Run when dt <= 0.
var ErrNonPositiveDt = errors.New("finite positive time step dt must be supplied")

// ErrZeroMinDelay is returned at construction when the network's minimum
// delay is not strictly positive, which would make the epoch length zero.
var ErrZeroMinDelay = errors.New("network minimum delay must be positive")

// BadEventTimeError reports an injected event scheduled before the end of
// the resident epoch. Past-time injection is illegal: the interval has
// already been integrated.
type BadEventTimeError struct {
	EventTime TimeType
	Horizon   TimeType
}

func (e *BadEventTimeError) Error() string {
	return fmt.Sprintf("event time %v is before the current simulation horizon %v", e.EventTime, e.Horizon)
}

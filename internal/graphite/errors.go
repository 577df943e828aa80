package graphite

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks settings rejected at construction time.
	ErrConfiguration = errors.New("invalid graphite configuration")
	// ErrConnection marks socket dial or write failures.
	ErrConnection = errors.New("graphite connection failed")
	// ErrDelivery marks lines that could not be sent after the retry.
	ErrDelivery = errors.New("graphite delivery failed")
	// ErrResolution marks a single metric skipped because its value is not numeric.
	ErrResolution = errors.New("graphite metric unresolved")
)

// DeliveryError reports lines lost for one send or one event.
// Params: Sent lines written before the failure; Dropped lines not written; Err last cause.
// Returns: error matching ErrDelivery and the wrapped cause.
type DeliveryError struct {
	Sent    int
	Dropped int
	Err     error
}

// Error formats the delivery failure.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: sent=%d dropped=%d: %v", ErrDelivery.Error(), e.Sent, e.Dropped, e.Err)
}

// Unwrap exposes ErrDelivery and the cause to errors.Is/As.
func (e *DeliveryError) Unwrap() []error {
	return []error{ErrDelivery, e.Err}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

package realtime

import (
	"context"
	"errors"
	"fmt"
)

// Transport delivers an encoded event to subscribers of a channel. Delivery
// guarantees belong to the implementation.
type Transport interface {
	Name() string
	Publish(ctx context.Context, channel string, payload []byte) error
}

// TransportError records which transport rejected a publish.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Multi publishes to every transport and keeps going past failures.
type Multi []Transport

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, channel string, payload []byte) error {
	var errs []error
	for _, t := range m {
		if err := t.Publish(ctx, channel, payload); err != nil {
			errs = append(errs, &TransportError{Transport: t.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// FailedTransports lists the transport names recorded in err. Errors that
// did not come through Multi contribute nothing.
func FailedTransports(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		var te *TransportError
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if errors.As(e, &te) {
			out = append(out, te.Transport)
		}
	}
	walk(err)
	return out
}

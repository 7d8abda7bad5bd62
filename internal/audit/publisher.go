// Package audit moves audit events off the request path. Services emit into
// a Queue; a Worker drains it into the configured sinks.
package audit

import (
	"context"
	"errors"

	audit "credify/pkg/platform/audit"
)

// Fanout emits every event to each sink in order. One failing sink does not
// stop the others.
type Fanout []audit.Emitter

func (f Fanout) Emit(ctx context.Context, event audit.Event) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

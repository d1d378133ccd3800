package stream

import (
	"fmt"

	"go.uber.org/zap"
)

// Warnings accumulates recoverable integrity issues during one container
// read. In strict mode every added warning becomes a fatal error instead.
type Warnings struct {
	log    *zap.Logger
	list   []Warning
	strict bool
}

// NewWarnings creates a warning accumulator that logs through the given
// sink. A nil logger is replaced by a no-op one.
func NewWarnings(log *zap.Logger, strict bool) *Warnings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warnings{log: log, strict: strict}
}

// Add records one warning. The returned error is nil unless the
// accumulator is strict, in which case the warning is promoted.
func (w *Warnings) Add(kind WarningKind, block int, field string, format string, args ...interface{}) error {
	warn := Warning{
		Kind:  kind,
		Block: block,
		Field: field,
		Msg:   fmt.Sprintf(format, args...),
	}
	w.list = append(w.list, warn)
	w.log.Warn(warn.Msg,
		zap.String("kind", kind.String()),
		zap.Int("block", block),
		zap.String("field", field),
	)
	if w.strict {
		return fmt.Errorf("%s (block %d, field %q): %w", warn.Msg, block, field, ErrStrictIntegrity)
	}
	return nil
}

// List returns the accumulated warnings in order of discovery.
func (w *Warnings) List() []Warning {
	return w.list
}

// Len returns the number of accumulated warnings.
func (w *Warnings) Len() int {
	return len(w.list)
}

package macho

import (
	"fmt"

	"github.com/apex/log"
)

// Warnings collects every tolerated anomaly found while parsing or
// rewriting and forwards each one to a logger. A nil *Warnings logs to the
// default apex logger and keeps nothing.
type Warnings struct {
	Log  log.Interface
	list []string
}

// NewWarnings returns a sink that forwards to l (log.Log when nil).
func NewWarnings(l log.Interface) *Warnings {
	if l == nil {
		l = log.Log
	}
	return &Warnings{Log: l}
}

// Warnf records one warning.
func (w *Warnings) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if w == nil {
		log.Warn(msg)
		return
	}
	w.list = append(w.list, msg)
	if w.Log != nil {
		w.Log.Warn(msg)
	}
}

// List returns the collected warnings in order.
func (w *Warnings) List() []string {
	if w == nil {
		return nil
	}
	return w.list
}

// Len returns the number of collected warnings.
func (w *Warnings) Len() int {
	if w == nil {
		return 0
	}
	return len(w.list)
}

// Package schederr defines the typed panic value raised by both policy
// engines for caller-contract violations (§7 of the scheduler design):
// unknown task ids in any operation (unlock_mutex included), duplicate
// add_task, zero weight, and re-entrant lock_mutex by the current owner.
//
// Unknown mutex ids are deliberately NOT modeled here: unlock_mutex on an
// unknown mutex is a silent no-op and lock_mutex on an unknown mutex lazily
// creates it, per the spec's asymmetric taxonomy. Neither path panics.
package schederr

import "fmt"

// Violation is the panic value raised for a caller-contract violation. An
// embedder that wants structured detail instead of a bare string can recover
// and type-assert for it.
type Violation struct {
	Op      string
	TaskID  uint64
	MutexID uint64
	Msg     string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s (task=%d mutex=%d)", v.Op, v.Msg, v.TaskID, v.MutexID)
}

// Panicf raises a Violation for op, identifying taskID (0 if not
// applicable) and mutexID (0 if not applicable).
func Panicf(op string, taskID, mutexID uint64, format string, args ...any) {
	panic(&Violation{
		Op:      op,
		TaskID:  taskID,
		MutexID: mutexID,
		Msg:     fmt.Sprintf(format, args...),
	})
}

// Package result holds the state of an asynchronous request as a value.
package result

import "fmt"

// State is the lifecycle stage of a request.
type State int

const (
	NotStarted State = iota
	Pending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is exactly one of NotStarted, Pending, Succeeded(value) or
// Failed(err). The zero value is NotStarted.
type Result[T any] struct {
	state State
	value T
	err   error
}

// Start returns a pending result.
func Start[T any]() Result[T] {
	return Result[T]{state: Pending}
}

// Ok returns a succeeded result carrying v.
func Ok[T any](v T) Result[T] {
	return Result[T]{state: Succeeded, value: v}
}

// Fail returns a failed result carrying err.
func Fail[T any](err error) Result[T] {
	return Result[T]{state: Failed, err: err}
}

func (r Result[T]) State() State { return r.state }

func (r Result[T]) IsNotStarted() bool { return r.state == NotStarted }
func (r Result[T]) IsPending() bool    { return r.state == Pending }
func (r Result[T]) IsSucceeded() bool  { return r.state == Succeeded }
func (r Result[T]) IsFailed() bool     { return r.state == Failed }

// Value returns the success value and whether the result succeeded.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.state == Succeeded
}

// Err returns the failure, or nil unless the result failed.
func (r Result[T]) Err() error {
	if r.state != Failed {
		return nil
	}
	return r.err
}

func (r Result[T]) String() string {
	if r.state == Failed && r.err != nil {
		return fmt.Sprintf("%s: %v", r.state, r.err)
	}
	return r.state.String()
}

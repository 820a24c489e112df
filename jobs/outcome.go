package jobs

// Outcome is the result of a mutation that may complete synchronously or
// defer to a job. It is a two-variant sum: exactly one of "pending with a
// job handle" or "done with a value" holds, so the invalid states of a
// nullable pair (both set, neither set) cannot be constructed.
type Outcome[T any] struct {
	jobID string
	value T
	done  bool
}

// Pending returns an Outcome deferring to the job with the given handle.
func Pending[T any](jobID string) Outcome[T] {
	return Outcome[T]{jobID: jobID}
}

// Done returns an Outcome carrying an already-final value.
func Done[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, done: true}
}

// Pending returns the job handle when the operation was deferred.
func (o Outcome[T]) Pending() (string, bool) {
	return o.jobID, !o.done
}

// Value returns the final value when the operation completed synchronously.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.done
}

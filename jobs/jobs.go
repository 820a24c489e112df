// Package jobs tracks asynchronous plugin operations.
//
// An operation whose completion time cannot be bounded synchronously creates
// a job and returns its handle instead of a result. The registry is owned by
// the plugin process; job creation happens inside one request handler while
// status and free calls arrive on later requests, so all state is guarded by
// a mutex. The client observes jobs only through the polling protocol.
//
// State machine:
//
//	INPROGRESS ──→ COMPLETE   (percent reaches 100)
//	     └───────→ ERROR
//
// Both terminal states are final; percent_complete is monotonically
// non-decreasing and equals 100 only once COMPLETE. A freed handle is never
// reused.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"stormgmt/fault"
)

// Status enumerates job states as they appear on the wire.
type Status int

const (
	StatusInProgress Status = 1
	StatusComplete   Status = 2
	StatusError      Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "INPROGRESS"
	case StatusComplete:
		return "COMPLETE"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Info is one observation of a job.
type Info struct {
	Status  Status
	Percent int
	Result  any          // carried value, nil until COMPLETE
	Err     *fault.Error // recorded failure, nil unless ERROR
}

type job struct {
	info Info
	done chan struct{} // closed on the transition to a terminal state
}

// Registry is the server-side job table. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu   sync.Mutex
	seq  uint64
	jobs map[string]*job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job)}
}

// Create registers a new INPROGRESS job and returns its opaque handle.
// Handles are unique for the registry's lifetime, never recycled.
func (r *Registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("JOB_%d", r.seq)
	r.jobs[id] = &job{
		info: Info{Status: StatusInProgress},
		done: make(chan struct{}),
	}
	return id
}

func (r *Registry) get(id string) (*job, *fault.Error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, fault.Newf(fault.ErrJobNotFound, "job %q not found", id)
	}
	return j, nil
}

// Progress advances percent_complete. Regressions are clamped so the
// reported value never decreases; terminal jobs reject updates.
func (r *Registry) Progress(id string, percent int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ferr := r.get(id)
	if ferr != nil {
		return ferr
	}
	if j.info.Status.Terminal() {
		return fault.Newf(fault.ErrInvalidArgument, "job %q already %s", id, j.info.Status)
	}
	if percent > 99 {
		percent = 99 // 100 is reserved for COMPLETE
	}
	if percent > j.info.Percent {
		j.info.Percent = percent
	}
	return nil
}

// Complete moves the job to COMPLETE carrying result.
func (r *Registry) Complete(id string, result any) error {
	return r.finish(id, Info{Status: StatusComplete, Percent: 100, Result: result})
}

// Fail moves the job to ERROR carrying the recorded fault.
func (r *Registry) Fail(id string, fe *fault.Error) error {
	return r.finish(id, Info{Status: StatusError, Err: fe})
}

func (r *Registry) finish(id string, final Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ferr := r.get(id)
	if ferr != nil {
		return ferr
	}
	if j.info.Status.Terminal() {
		return fault.Newf(fault.ErrInvalidArgument, "job %q already %s", id, j.info.Status)
	}
	if final.Status == StatusError {
		final.Percent = j.info.Percent
	}
	j.info = final
	close(j.done)
	return nil
}

// Status returns the current observation of the job. Unknown or freed
// handles fail with ErrJobNotFound.
func (r *Registry) Status(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ferr := r.get(id)
	if ferr != nil {
		return Info{}, ferr
	}
	return j.info, nil
}

// Free releases the registry storage for the job. Freeing an INPROGRESS job
// is permitted: the underlying task keeps running but its eventual result is
// dropped. Subsequent Status calls on the handle fail with ErrJobNotFound.
func (r *Registry) Free(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ferr := r.get(id); ferr != nil {
		return ferr
	}
	delete(r.jobs, id)
	return nil
}

// Wait blocks until the job reaches a terminal state or ctx is done, then
// returns the final observation. It lets in-process callers suspend without
// busy-waiting; the wire protocol still polls Status.
//
// A job freed while Wait is blocked keeps Wait blocked until ctx expires;
// callers coordinating Free with Wait should cancel the context first.
func (r *Registry) Wait(ctx context.Context, id string) (Info, error) {
	r.mu.Lock()
	j, ferr := r.get(id)
	r.mu.Unlock()
	if ferr != nil {
		return Info{}, ferr
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		return Info{}, fault.Newf(fault.ErrTimeout, "waiting for job %q: %v", id, ctx.Err())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return j.info, nil
}

// Len reports the number of live (unfreed) jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

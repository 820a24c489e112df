package jobs

import (
	"context"
	"testing"
	"time"

	"stormgmt/fault"
)

func TestLifecycleComplete(t *testing.T) {
	r := NewRegistry()
	id := r.Create()

	info, err := r.Status(id)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if info.Status != StatusInProgress || info.Percent != 0 {
		t.Fatalf("new job: got %+v", info)
	}

	if err := r.Progress(id, 40); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	// Regressions are clamped, never visible.
	if err := r.Progress(id, 10); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	info, _ = r.Status(id)
	if info.Percent != 40 {
		t.Errorf("percent regressed: got %d, want 40", info.Percent)
	}

	// 100 is reserved for the COMPLETE transition.
	if err := r.Progress(id, 100); err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	info, _ = r.Status(id)
	if info.Percent != 99 {
		t.Errorf("in-progress percent: got %d, want 99", info.Percent)
	}

	if err := r.Complete(id, "payload"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	info, _ = r.Status(id)
	if info.Status != StatusComplete || info.Percent != 100 || info.Result != "payload" {
		t.Errorf("completed job: got %+v", info)
	}

	// Terminal states are final.
	if err := r.Fail(id, fault.New(fault.ErrPluginFailure, "late")); err == nil {
		t.Errorf("Fail after Complete should be rejected")
	}
}

func TestLifecycleError(t *testing.T) {
	r := NewRegistry()
	id := r.Create()
	r.Progress(id, 30)

	recorded := fault.New(fault.ErrExists, "name already in use")
	if err := r.Fail(id, recorded); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	info, err := r.Status(id)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if info.Status != StatusError || info.Err != recorded {
		t.Errorf("failed job: got %+v", info)
	}
	if info.Percent != 30 {
		t.Errorf("error must keep last percent, got %d", info.Percent)
	}
}

func TestFreeSemantics(t *testing.T) {
	r := NewRegistry()
	id := r.Create()
	r.Complete(id, nil)

	if err := r.Free(id); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if _, err := r.Status(id); fault.Code(err) != fault.ErrJobNotFound {
		t.Errorf("Status after Free: got %v, want job-not-found", err)
	}
	if err := r.Free(id); fault.Code(err) != fault.ErrJobNotFound {
		t.Errorf("double Free: got %v, want job-not-found", err)
	}

	// Freeing an in-progress job is permitted; its result is dropped.
	live := r.Create()
	if err := r.Free(live); err != nil {
		t.Fatalf("Free of in-progress job failed: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("registry still tracks %d jobs", r.Len())
	}
}

func TestUnknownHandle(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Status("JOB_404"); fault.Code(err) != fault.ErrJobNotFound {
		t.Errorf("Status: got %v, want job-not-found", err)
	}
	if err := r.Progress("JOB_404", 5); fault.Code(err) != fault.ErrJobNotFound {
		t.Errorf("Progress: got %v, want job-not-found", err)
	}
}

func TestHandlesNeverReused(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Create()
		if seen[id] {
			t.Fatalf("handle %q reused", id)
		}
		seen[id] = true
		r.Complete(id, nil)
		r.Free(id)
	}
}

func TestWait(t *testing.T) {
	r := NewRegistry()
	id := r.Create()

	go func() {
		for pct := 20; pct < 100; pct += 20 {
			r.Progress(id, pct)
		}
		r.Complete(id, 7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := r.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if info.Status != StatusComplete || info.Result != 7 {
		t.Errorf("Wait observed %+v", info)
	}

	// Expired context surfaces a timeout fault.
	stuck := r.Create()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if _, err := r.Wait(ctx2, stuck); fault.Code(err) != fault.ErrTimeout {
		t.Errorf("Wait on stuck job: got %v, want timeout fault", err)
	}
}

func TestOutcome(t *testing.T) {
	p := Pending[int]("JOB_1")
	if id, pending := p.Pending(); !pending || id != "JOB_1" {
		t.Errorf("Pending outcome: got (%q, %v)", id, pending)
	}
	if _, done := p.Value(); done {
		t.Errorf("pending outcome must not carry a value")
	}

	d := Done(42)
	if _, pending := d.Pending(); pending {
		t.Errorf("done outcome must not be pending")
	}
	if v, done := d.Value(); !done || v != 42 {
		t.Errorf("Done outcome: got (%d, %v)", v, done)
	}
}

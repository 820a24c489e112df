package fault

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestWireShape(t *testing.T) {
	e := New(ErrNoSupport, "operation not supported")
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	// Data must be present on the wire even when null.
	want := `{"code":102,"message":"operation not supported","data":null}`
	if string(data) != want {
		t.Errorf("wire form: got %s, want %s", data, want)
	}

	var back Error
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Code != ErrNoSupport || back.Message != "operation not supported" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestFromError(t *testing.T) {
	fe := New(ErrNotFound, "no such volume")
	if got := FromError(fe); got != fe {
		t.Errorf("structured fault should pass through unchanged")
	}
	if got := FromError(fmt.Errorf("outer: %w", fe)); got != fe {
		t.Errorf("wrapped fault should unwrap, got %+v", got)
	}

	plain := errors.New("disk on fire")
	got := FromError(plain)
	if got.Code != ErrPluginFailure || got.Message != "disk on fire" {
		t.Errorf("plain error should wrap as plugin failure, got %+v", got)
	}

	if FromError(nil) != nil {
		t.Errorf("FromError(nil) must be nil")
	}
}

func TestCodeAndClassifiers(t *testing.T) {
	if Code(nil) != 0 {
		t.Errorf("Code(nil) should be 0")
	}
	if Code(New(ErrTimeout, "t")) != ErrTimeout {
		t.Errorf("Code should extract the fault code")
	}
	if Code(errors.New("x")) != ErrPluginFailure {
		t.Errorf("unstructured errors classify as plugin failure")
	}
	if !IsNoSupport(NoSupport()) {
		t.Errorf("IsNoSupport(NoSupport()) should be true")
	}
	if IsNoSupport(New(ErrNotFound, "gone")) {
		t.Errorf("not-found is not no-support")
	}
}

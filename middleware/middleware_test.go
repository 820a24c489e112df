package middleware

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"stormgmt/fault"
	"stormgmt/message"
)

func okHandler(ctx context.Context, req *message.Message) *message.Message {
	return message.NewResponse(req.ID, nil)
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Message) *message.Message {
				trace = append(trace, name+".before")
				resp := next(ctx, req)
				trace = append(trace, name+".after")
				return resp
			}
		}
	}

	h := Chain(mark("A"), mark("B"))(okHandler)
	h(context.Background(), message.NewRequest("systems", nil))

	want := []string{"A.before", "B.before", "B.after", "A.after"}
	if len(trace) != len(want) {
		t.Fatalf("trace: got %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace: got %v, want %v", trace, want)
		}
	}
}

func TestRecoverTurnsPanicIntoFault(t *testing.T) {
	boom := func(ctx context.Context, req *message.Message) *message.Message {
		panic("array caught fire")
	}

	resp := Recover()(boom)(context.Background(), message.NewRequest("volume_create", nil))
	if resp.Kind() != message.KindFault {
		t.Fatalf("panic did not become a fault: %+v", resp)
	}
	if resp.Error.Code != fault.ErrPluginFailure {
		t.Errorf("fault code: got %d, want %d", resp.Error.Code, fault.ErrPluginFailure)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2)(okHandler)
	req := message.NewRequest("pools", nil)

	// Burst of two passes, third is rejected.
	for i := 0; i < 2; i++ {
		if resp := h(context.Background(), req); resp.Kind() != message.KindResponse {
			t.Fatalf("request %d rejected inside burst: %+v", i, resp)
		}
	}
	resp := h(context.Background(), req)
	if resp.Kind() != message.KindFault || resp.Error.Code != fault.ErrBusy {
		t.Errorf("over-budget request: got %+v, want busy fault", resp)
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	h := Logging(zerolog.Nop())(okHandler)
	resp := h(context.Background(), message.NewRequest("systems", nil))
	if resp.Kind() != message.KindResponse {
		t.Errorf("logging altered the response: %+v", resp)
	}

	faulty := func(ctx context.Context, req *message.Message) *message.Message {
		return message.NewFault(req.ID, fault.NoSupport())
	}
	resp = Logging(zerolog.Nop())(faulty)(context.Background(), message.NewRequest("volume_resize", nil))
	if resp.Error == nil || resp.Error.Code != fault.ErrNoSupport {
		t.Errorf("logging altered the fault: %+v", resp)
	}
}

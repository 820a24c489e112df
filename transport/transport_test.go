package transport

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"stormgmt/codec"
	"stormgmt/fault"
	"stormgmt/message"
)

// echoServer answers requests on conn until a "done" request arrives:
// "error" replies with a fault built from the params, anything else echoes
// the params back as the result.
func echoServer(t *testing.T, conn net.Conn) {
	t.Helper()
	tr := New(conn)
	defer tr.Close()

	for {
		m, err := tr.ReceiveMessage()
		if err != nil {
			return
		}
		params, err := codec.Decode(m.Params)
		if err != nil {
			t.Errorf("server decode failed: %v", err)
			return
		}

		switch m.Method {
		case "error":
			args := params.(map[string]any)
			code, _ := args["errorcode"].(json.Number).Int64()
			tr.SendFault(m.ID, fault.New(int(code), args["errormsg"].(string)))
		case "done":
			tr.SendResponse(m.ID, params)
			return
		default:
			tr.SendResponse(m.ID, params)
		}
	}
}

func pipePair(t *testing.T) (*Transport, func()) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	go echoServer(t, serverConn)
	client := New(clientConn)
	return client, func() {
		client.Call("done", "bye")
		client.Close()
	}
}

func TestCallEcho(t *testing.T) {
	client, shutdown := pipePair(t)
	defer shutdown()

	payloads := []string{"0", " ", "   ", `{}:""`, "Some text message", "DEADBEEF"}
	for _, p := range payloads {
		got, err := client.Call("test", p)
		if err != nil {
			t.Fatalf("Call(%q) failed: %v", p, err)
		}
		if got != p {
			t.Errorf("echo mismatch: got %v, want %q", got, p)
		}
	}
}

func TestFaultFidelity(t *testing.T) {
	client, shutdown := pipePair(t)
	defer shutdown()

	for _, msg := range []string{"Test error message", "диск не найден", "ボリューム"} {
		_, err := client.Call("error", map[string]any{
			"errorcode": 100,
			"errormsg":  msg,
		})
		if err == nil {
			t.Fatalf("fault reply must surface as an error")
		}
		fe := fault.FromError(err)
		if fe.Code != 100 || fe.Message != msg {
			t.Errorf("fault mangled in transit: got %+v", fe)
		}
	}

	// The connection stays usable after an operation-level fault.
	if _, err := client.Call("test", "still alive"); err != nil {
		t.Errorf("call after fault failed: %v", err)
	}
}

func TestStrictAlternation(t *testing.T) {
	client, shutdown := pipePair(t)
	defer shutdown()

	if err := client.SendRequest("test", "first"); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if err := client.SendRequest("test", "second"); fault.Code(err) != fault.ErrTransport {
		t.Errorf("second in-flight request: got %v, want transport fault", err)
	}

	if _, err := client.ReceiveMessage(); err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
	// Reply consumed; the next request is legal again.
	if err := client.SendRequest("test", "third"); err != nil {
		t.Errorf("request after reply failed: %v", err)
	}
	if _, err := client.ReceiveMessage(); err != nil {
		t.Fatalf("ReceiveMessage failed: %v", err)
	}
}

func TestPeerDisconnectIsEOF(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := New(clientConn)
	defer client.Close()

	go func() {
		// Read the request, then hang up without answering.
		tr := New(serverConn)
		tr.ReceiveMessage()
		tr.Close()
	}()

	_, err := client.Call("test", "anyone there")
	if fault.Code(err) != fault.ErrTransportEOF {
		t.Errorf("peer disconnect: got %v, want EOF fault", err)
	}
}

func TestReplyTimeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	client := New(clientConn)
	defer client.Close()

	go func() {
		// Swallow the request and never reply.
		tr := New(serverConn)
		tr.ReceiveMessage()
	}()

	client.SetTimeout(50 * time.Millisecond)
	if d := client.Timeout(); d != 50*time.Millisecond {
		t.Fatalf("Timeout: got %v", d)
	}

	_, err := client.Call("test", "slow")
	if fault.Code(err) != fault.ErrTimeout {
		t.Errorf("silent peer: got %v, want timeout fault", err)
	}
}

func TestClosedTransport(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	client := New(clientConn)

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Idempotent.
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := client.SendRequest("test", "x"); fault.Code(err) != fault.ErrTransportClosed {
		t.Errorf("SendRequest on closed transport: got %v", err)
	}
	if _, err := client.ReceiveMessage(); fault.Code(err) != fault.ErrTransportClosed {
		t.Errorf("ReceiveMessage on closed transport: got %v", err)
	}
}

func TestCorrelationIDEnforced(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	client := New(clientConn)
	defer client.Close()

	go func() {
		tr := New(serverConn)
		m, _ := tr.ReceiveMessage()
		if m == nil {
			return
		}
		// Reply with a stale id, as a desynchronized peer would.
		tr.SendResponse(m.ID+1, "ok")
	}()

	_, err := client.Call("test", "x")
	if fault.Code(err) != fault.ErrTransport {
		t.Errorf("mismatched id: got %v, want transport fault", err)
	}
}

func TestRequestIDIsFixed(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := New(clientConn)
	defer client.Close()

	done := make(chan *message.Message, 1)
	go func() {
		tr := New(serverConn)
		m, _ := tr.ReceiveMessage()
		tr.SendResponse(message.FixedID, nil)
		tr.Close()
		done <- m
	}()

	if _, err := client.Call("systems", nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	m := <-done
	if m == nil || m.ID != message.FixedID {
		t.Errorf("request id: got %+v, want %d", m, message.FixedID)
	}
}

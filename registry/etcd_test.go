package registry

import (
	"net"
	"testing"
	"time"
)

// Needs a local etcd (e.g. `etcd --listen-client-urls http://localhost:2379`).
func etcdOrSkip(t *testing.T) *EtcdRegistry {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "localhost:2379", 200*time.Millisecond)
	if err != nil {
		t.Skip("no etcd on localhost:2379")
	}
	conn.Close()

	reg, err := NewEtcdRegistry([]string{"localhost:2379"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg := etcdOrSkip(t)

	inst1 := PluginInstance{Name: "sim", SocketPath: "/run/stormgmt/sim.sock", Version: "1.0"}
	inst2 := PluginInstance{Name: "ontap", SocketPath: "/run/stormgmt/ontap.sock", Version: "1.0"}

	if err := reg.Register(inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(inst2, 10); err != nil {
		t.Fatal(err)
	}
	defer reg.Deregister("sim")
	defer reg.Deregister("ontap")

	instances, err := reg.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister("ontap"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Fatalf("expect 1 instance after deregister, got %d", len(instances))
	}
	if instances[0].Name != "sim" {
		t.Fatalf("expect sim, got %s", instances[0].Name)
	}
}

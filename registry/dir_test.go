package registry

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func listenUnix(t *testing.T, path string) net.Listener {
	t.Helper()
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestDirRegisterAndDiscover(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewDirRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	sock1 := filepath.Join(dir, "sim.sock")
	sock2 := filepath.Join(dir, "other.sock")
	listenUnix(t, sock1)
	listenUnix(t, sock2)

	inst1 := PluginInstance{Name: "sim", SocketPath: sock1, Version: "1.0"}
	inst2 := PluginInstance{Name: "other", SocketPath: sock2, Version: "2.1"}

	if err := reg.Register(inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}
	// Sorted by name.
	if instances[0].Name != "other" || instances[1].Name != "sim" {
		t.Fatalf("unexpected order: %+v", instances)
	}

	if err := reg.Deregister("other"); err != nil {
		t.Fatal(err)
	}
	instances, err = reg.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Name != "sim" {
		t.Fatalf("expect only sim after deregister, got %+v", instances)
	}
}

func TestDirDiscoverSkipsStaleManifest(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewDirRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	// Manifest pointing at a socket that never existed.
	dead := PluginInstance{Name: "dead", SocketPath: filepath.Join(dir, "dead.sock"), Version: "1.0"}
	if err := reg.Register(dead, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover()
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 0 {
		t.Fatalf("stale manifest survived discovery: %+v", instances)
	}
}

func TestDirDeregisterMissingIsNoop(t *testing.T) {
	reg, err := NewDirRegistry(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	if err := reg.Deregister("never-registered"); err != nil {
		t.Fatal(err)
	}
}

func TestDirWatch(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewDirRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	reg.SetScanInterval(10 * time.Millisecond)

	ch := reg.Watch()

	sock := filepath.Join(dir, "sim.sock")
	listenUnix(t, sock)
	if err := reg.Register(PluginInstance{Name: "sim", SocketPath: sock, Version: "1.0"}, 10); err != nil {
		t.Fatal(err)
	}

	select {
	case instances := <-ch:
		if len(instances) != 1 || instances[0].Name != "sim" {
			t.Fatalf("watch emitted %+v", instances)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never observed the registration")
	}
}

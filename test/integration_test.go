package test

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"stormgmt/client"
	"stormgmt/fault"
	"stormgmt/middleware"
	"stormgmt/plugin"
	"stormgmt/registry"
	"stormgmt/simulator"
	"stormgmt/types"

	"github.com/rs/zerolog"
)

// setupDaemon serves the simulator on a unix socket the way simplugind
// does, one Runner per accepted connection.
func setupDaemon(t testing.TB, sim *simulator.Plugin) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "sim.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			r := plugin.NewRunner(conn, sim)
			r.Use(middleware.Logging(zerolog.Nop()))
			go r.Serve()
		}
	}()
	return socketPath
}

func dialStarted(t testing.TB, socketPath string) *client.Client {
	t.Helper()
	c, err := client.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	c.SetPollInterval(5 * time.Millisecond)
	if err := c.Startup("sim://", "", 30000); err != nil {
		t.Fatalf("startup: %v", err)
	}
	return c
}

func TestEndToEndPoolProvisioning(t *testing.T) {
	sim := simulator.New()
	sim.SetJobDuration(20 * time.Millisecond)
	sim.SetAsyncThreshold(1 << 20)
	c := dialStarted(t, setupDaemon(t, sim))

	ctx := context.Background()

	// Below the threshold: completes in one exchange.
	small, err := c.PoolCreate(ctx, "sim-1", "agg-small", 1<<16, types.RaidUnknown, types.MemberTypeUnknown)
	if err != nil {
		t.Fatalf("small pool create: %v", err)
	}
	if small.TotalSpace != 1<<16 {
		t.Fatalf("small pool = %+v", small)
	}

	// Above the threshold: deferred to a job, polled transparently.
	big, err := c.PoolCreate(ctx, "sim-1", "agg-big", 16<<20, types.Raid5, types.MemberTypeDisk)
	if err != nil {
		t.Fatalf("big pool create: %v", err)
	}

	carved, err := c.PoolCreateFromPool(ctx, "sim-1", "carved", big.ID, 1<<16)
	if err != nil {
		t.Fatalf("carved pool create: %v", err)
	}

	pools, err := c.Pools()
	if err != nil || len(pools) != 5 {
		t.Fatalf("pools = %+v, %v", pools, err)
	}

	vol, err := c.VolumeCreate(ctx, small.ID, "v", 1<<12, types.ProvisionDefault)
	if err != nil {
		t.Fatalf("volume create: %v", err)
	}
	if err := c.PoolDelete(ctx, small.ID); fault.Code(err) != fault.ErrInvalidArgument {
		t.Fatalf("delete of occupied pool: %v", err)
	}
	if err := c.VolumeDelete(ctx, vol.ID); err != nil {
		t.Fatalf("volume delete: %v", err)
	}

	for _, id := range []string{carved.ID, big.ID, small.ID} {
		if err := c.PoolDelete(ctx, id); err != nil {
			t.Fatalf("pool delete %s: %v", id, err)
		}
	}
	pools, _ = c.Pools()
	if len(pools) != 2 {
		t.Fatalf("pools after cleanup = %+v", pools)
	}
}

func TestEndToEndBlockProvisioning(t *testing.T) {
	sim := simulator.New()
	sim.SetJobDuration(20 * time.Millisecond)
	sim.SetAsyncThreshold(1 << 20)
	c := dialStarted(t, setupDaemon(t, sim))

	desc, version, err := c.PluginInfo()
	if err != nil || desc == "" || version == "" {
		t.Fatalf("plugin info = %q %q, %v", desc, version, err)
	}

	systems, err := c.Systems()
	if err != nil || len(systems) != 1 {
		t.Fatalf("systems = %+v, %v", systems, err)
	}
	pools, err := c.Pools()
	if err != nil || len(pools) != 2 {
		t.Fatalf("pools = %+v, %v", pools, err)
	}

	ctx := context.Background()

	// Below the threshold: completes in one exchange.
	small, err := c.VolumeCreate(ctx, pools[0].ID, "small", 1<<16, types.ProvisionDefault)
	if err != nil {
		t.Fatalf("small create: %v", err)
	}

	// Above the threshold: deferred to a job, polled transparently.
	big, err := c.VolumeCreate(ctx, pools[0].ID, "big", 16<<20, types.ProvisionThin)
	if err != nil {
		t.Fatalf("big create: %v", err)
	}
	if big.SizeBytes() != 16<<20 {
		t.Fatalf("big volume = %+v", big)
	}

	vols, err := c.Volumes()
	if err != nil || len(vols) != 2 {
		t.Fatalf("volumes = %+v, %v", vols, err)
	}

	grown, err := c.VolumeResize(ctx, small.ID, 1<<22)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if grown.SizeBytes() != 1<<22 {
		t.Fatalf("resized volume = %+v", grown)
	}

	if err := c.VolumeOffline(small.ID); err != nil {
		t.Fatalf("offline: %v", err)
	}
	if err := c.VolumeOnline(small.ID); err != nil {
		t.Fatalf("online: %v", err)
	}

	if err := c.VolumeDelete(ctx, big.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	vols, _ = c.Volumes()
	if len(vols) != 1 {
		t.Fatalf("volumes after delete = %+v", vols)
	}
}

func TestEndToEndReplication(t *testing.T) {
	sim := simulator.New()
	sim.SetJobDuration(20 * time.Millisecond)
	sim.SetAsyncThreshold(1 << 20)
	c := dialStarted(t, setupDaemon(t, sim))
	ctx := context.Background()

	src, err := c.VolumeCreate(ctx, "POOL_1", "src", 8<<20, types.ProvisionDefault)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rep, err := c.VolumeReplicate(ctx, "POOL_2", types.ReplicateSnapshot, src.ID, "snap-of-src")
	if err != nil {
		t.Fatalf("replicate: %v", err)
	}
	if rep.PoolID != "POOL_2" || rep.SizeBytes() != src.SizeBytes() {
		t.Fatalf("replica = %+v", rep)
	}

	dep, err := c.VolumeChildDependency(src.ID)
	if err != nil || !dep {
		t.Fatalf("dependency = %v, %v", dep, err)
	}
	if err := c.VolumeChildDependencyRm(ctx, src.ID); err != nil {
		t.Fatalf("dependency rm: %v", err)
	}
	dep, _ = c.VolumeChildDependency(src.ID)
	if dep {
		t.Fatal("dependency survived removal")
	}
}

func TestEndToEndMasking(t *testing.T) {
	sim := simulator.New()
	c := dialStarted(t, setupDaemon(t, sim))
	ctx := context.Background()

	vol, err := c.VolumeCreate(ctx, "POOL_1", "lun0", 1<<20, types.ProvisionDefault)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	iqn := "iqn.2026-08.org.example:host1"
	if err := c.InitiatorGrant(iqn, types.InitiatorISCSIIQN, vol.ID, types.AccessReadWrite); err != nil {
		t.Fatalf("grant: %v", err)
	}
	vols, err := c.VolumesAccessibleByInitiator(iqn)
	if err != nil || len(vols) != 1 || vols[0].ID != vol.ID {
		t.Fatalf("accessible = %+v, %v", vols, err)
	}

	g, err := c.AccessGroupCreate("cluster", "wwpn-1", types.InitiatorWWPN, "sim-1")
	if err != nil {
		t.Fatalf("group create: %v", err)
	}
	if err := c.AccessGroupGrant(g.ID, vol.ID, types.AccessReadOnly); err != nil {
		t.Fatalf("group grant: %v", err)
	}
	groups, err := c.AccessGroupsGrantedToVolume(vol.ID)
	if err != nil || len(groups) != 1 || groups[0].ID != g.ID {
		t.Fatalf("granted groups = %+v, %v", groups, err)
	}
	if err := c.AccessGroupRevoke(g.ID, vol.ID); err != nil {
		t.Fatalf("group revoke: %v", err)
	}
	if err := c.InitiatorRevoke(iqn, vol.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
}

func TestEndToEndFileProvisioning(t *testing.T) {
	sim := simulator.New()
	sim.SetJobDuration(20 * time.Millisecond)
	c := dialStarted(t, setupDaemon(t, sim))
	ctx := context.Background()

	fs, err := c.FsCreate(ctx, "POOL_2", "projects", 1<<24)
	if err != nil {
		t.Fatalf("fs create: %v", err)
	}

	snap, err := c.FsSnapshotCreate(ctx, fs.ID, "before-upgrade", nil)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	snaps, err := c.FsSnapshots(fs.ID)
	if err != nil || len(snaps) != 1 || snaps[0].ID != snap.ID {
		t.Fatalf("snapshots = %+v, %v", snaps, err)
	}

	// file_clone always runs as a job on the simulator.
	if err := c.FileClone(ctx, fs.ID, "a.db", "a.db.bak", ""); err != nil {
		t.Fatalf("file clone: %v", err)
	}

	if err := c.FsSnapshotRevert(ctx, fs.ID, snap.ID, nil, nil, true); err != nil {
		t.Fatalf("revert: %v", err)
	}

	export, err := c.ExportFs(fs.ID, "/exports/projects", nil, []string{"*.example.org"}, nil, -1, -1, "", "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	exports, err := c.Exports()
	if err != nil || len(exports) != 1 || exports[0].ID != export.ID {
		t.Fatalf("exports = %+v, %v", exports, err)
	}
	if err := c.ExportRemove(export.ID); err != nil {
		t.Fatalf("export remove: %v", err)
	}

	if err := c.FsSnapshotDelete(ctx, fs.ID, snap.ID); err != nil {
		t.Fatalf("snapshot delete: %v", err)
	}
	if err := c.FsDelete(ctx, fs.ID); err != nil {
		t.Fatalf("fs delete: %v", err)
	}
}

// Capability bits observed over the wire must predict dispatch outcomes.
func TestEndToEndCapabilityContract(t *testing.T) {
	sim := simulator.New()
	c := dialStarted(t, setupDaemon(t, sim))

	caps, err := c.Capabilities("sim-1")
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	if !caps.Supported(types.CapVolumeCreate) {
		t.Fatal("simulator does not advertise volume creation")
	}
	if caps.Supported(types.CapIscsiChapAuth) {
		t.Fatal("simulator advertises CHAP it does not implement")
	}

	err = c.IscsiChapAuth("iqn.x", "u", "p", "", "")
	if !fault.IsNoSupport(err) {
		t.Fatalf("chap auth on simulator: %v", err)
	}
	if _, err := c.VolumeReplicateRangeBlockSize("sim-1"); !fault.IsNoSupport(err) {
		t.Fatalf("range block size on simulator: %v", err)
	}
}

func TestEndToEndShutdown(t *testing.T) {
	sim := simulator.New()
	c := dialStarted(t, setupDaemon(t, sim))

	if err := c.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// After shutdown only plugin_info is still valid.
	if _, err := c.Systems(); fault.Code(err) != fault.ErrInvalidArgument {
		t.Fatalf("systems after shutdown: %v", err)
	}
	if _, _, err := c.PluginInfo(); err != nil {
		t.Fatalf("plugin_info after shutdown: %v", err)
	}
}

// Several clients, each with its own connection, may work concurrently.
func TestEndToEndConcurrentClients(t *testing.T) {
	sim := simulator.New()
	socketPath := setupDaemon(t, sim)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		i := i
		go func() {
			c, err := client.Dial(socketPath)
			if err != nil {
				done <- err
				return
			}
			defer c.Close()
			c.SetPollInterval(5 * time.Millisecond)
			if err := c.Startup("sim://", "", 30000); err != nil {
				done <- err
				return
			}
			_, err = c.VolumeCreate(context.Background(), "POOL_1",
				"vol-"+string(rune('a'+i)), 1<<20, types.ProvisionDefault)
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent client: %v", err)
		}
	}
	vols, err := sim.Volumes()
	if err != nil || len(vols) != 4 {
		t.Fatalf("volumes = %+v, %v", vols, err)
	}
}

// Discovery through the directory registry finds a live daemon socket.
func TestEndToEndDiscovery(t *testing.T) {
	sim := simulator.New()
	socketPath := setupDaemon(t, sim)

	reg, err := registry.NewDirRegistry(filepath.Dir(socketPath))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	desc, version, _ := sim.PluginInfo()
	if err := reg.Register(registry.PluginInstance{
		Name: "sim", SocketPath: socketPath, Version: version, Description: desc,
	}, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover()
	if err != nil || len(instances) != 1 {
		t.Fatalf("discover = %+v, %v", instances, err)
	}

	c, err := client.Dial(instances[0].SocketPath)
	if err != nil {
		t.Fatalf("dial discovered socket: %v", err)
	}
	defer c.Close()
	if err := c.Startup("sim://", "", 30000); err != nil {
		t.Fatalf("startup over discovered socket: %v", err)
	}
}

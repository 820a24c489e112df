package test

import (
	"context"
	"testing"

	"stormgmt/client"
	"stormgmt/simulator"
	"stormgmt/types"
)

func setupBenchClient(b *testing.B) *client.Client {
	sim := simulator.New()
	socketPath := setupDaemon(b, sim)
	c, err := client.Dial(socketPath)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { c.Close() })
	if err := c.Startup("sim://", "", 30000); err != nil {
		b.Fatal(err)
	}
	return c
}

// One full request/reply exchange over the unix socket.
func BenchmarkRoundTrip(b *testing.B) {
	c := setupBenchClient(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Systems(); err != nil {
			b.Fatal(err)
		}
	}
}

// Synchronous create and delete, exercising record encode on both sides.
func BenchmarkVolumeCreateDelete(b *testing.B) {
	c := setupBenchClient(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		vol, err := c.VolumeCreate(ctx, "POOL_1", "bench", 1<<20, types.ProvisionDefault)
		if err != nil {
			b.Fatal(err)
		}
		if err := c.VolumeDelete(ctx, vol.ID); err != nil {
			b.Fatal(err)
		}
	}
}

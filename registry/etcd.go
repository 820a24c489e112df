// etcd-backed registry for multi-host deployments.
//
//	Key:   /stormgmt/plugins/{Name}
//	Value: JSON-encoded PluginInstance
//
// Registration uses TTL leases: if the daemon crashes, the lease expires
// and the entry disappears on its own, so clients never dial a ghost
// socket on a dead host.

package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdPrefix = "/stormgmt/plugins/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Register puts the instance under a TTL lease and keeps the lease alive
// in the background. The lease ID stays local so several daemons can
// share one EtcdRegistry without racing.
func (r *EtcdRegistry) Register(instance PluginInstance, ttlSeconds int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, etcdPrefix+instance.Name, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes the plugin's entry. Called during graceful shutdown
// before the listener closes.
func (r *EtcdRegistry) Deregister(name string) error {
	_, err := r.client.Delete(context.TODO(), etcdPrefix+name)
	return err
}

// Watch monitors the plugin prefix and emits updated instance lists on any
// change, using etcd's server-push Watch rather than polling.
func (r *EtcdRegistry) Watch() <-chan []PluginInstance {
	ctx := context.TODO()
	ch := make(chan []PluginInstance, 1)

	go func() {
		watchChan := r.client.Watch(ctx, etcdPrefix, clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list on any change; simpler than
			// folding individual watch events into local state.
			instances, _ := r.Discover()
			ch <- instances
		}
	}()

	return ch
}

// Discover returns every registered plugin instance.
func (r *EtcdRegistry) Discover() ([]PluginInstance, error) {
	resp, err := r.client.Get(context.TODO(), etcdPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]PluginInstance, 0)
	for _, kv := range resp.Kvs {
		var instance PluginInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

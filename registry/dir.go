// Directory-backed registry for single-host deployments: each daemon drops
// a JSON manifest next to its unix socket, and discovery is a directory
// scan. No external services needed.

package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const manifestSuffix = ".plugin"

// DirRegistry implements Registry on a shared directory of manifests.
type DirRegistry struct {
	dir      string
	scanrate time.Duration

	mu      sync.Mutex
	closed  bool
	watches []chan []PluginInstance
	stop    chan struct{}
}

// NewDirRegistry uses dir for manifests, creating it if needed.
func NewDirRegistry(dir string) (*DirRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry dir %s: %w", dir, err)
	}
	return &DirRegistry{dir: dir, scanrate: time.Second, stop: make(chan struct{})}, nil
}

// SetScanInterval adjusts how often Watch re-scans. Mainly for tests.
func (r *DirRegistry) SetScanInterval(d time.Duration) {
	if d > 0 {
		r.scanrate = d
	}
}

func (r *DirRegistry) manifestPath(name string) string {
	return filepath.Join(r.dir, name+manifestSuffix)
}

// Register writes the instance manifest. The TTL is ignored: a crashed
// daemon leaves a manifest behind, and Discover weeds those out by
// checking that the socket still exists.
func (r *DirRegistry) Register(instance PluginInstance, ttlSeconds int64) error {
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	tmp := r.manifestPath(instance.Name) + ".tmp"
	if err := os.WriteFile(tmp, val, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.manifestPath(instance.Name))
}

func (r *DirRegistry) Deregister(name string) error {
	err := os.Remove(r.manifestPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Discover scans the directory. Manifests whose socket has vanished are
// treated as stale and skipped.
func (r *DirRegistry) Discover() ([]PluginInstance, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	instances := make([]PluginInstance, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestSuffix) {
			continue
		}
		val, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		var instance PluginInstance
		if err := json.Unmarshal(val, &instance); err != nil {
			continue // skip malformed manifests
		}
		if instance.SocketPath != "" {
			if _, err := os.Stat(instance.SocketPath); err != nil {
				continue // daemon gone, manifest stale
			}
		}
		instances = append(instances, instance)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return instances, nil
}

// Watch polls the directory on a ticker and emits the instance list when
// it changes. Coarser than etcd's server push but dependency-free.
func (r *DirRegistry) Watch() <-chan []PluginInstance {
	ch := make(chan []PluginInstance, 1)

	r.mu.Lock()
	r.watches = append(r.watches, ch)
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(r.scanrate)
		defer ticker.Stop()
		var last string
		for {
			select {
			case <-r.stop:
				close(ch)
				return
			case <-ticker.C:
			}
			instances, err := r.Discover()
			if err != nil {
				continue
			}
			fingerprint := fmt.Sprintf("%+v", instances)
			if fingerprint == last {
				continue
			}
			last = fingerprint
			select {
			case ch <- instances:
			default: // receiver lagging, drop this update
			}
		}
	}()

	return ch
}

func (r *DirRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.stop)
	}
	return nil
}

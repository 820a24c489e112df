// Package registry tracks which plugins are available and where their
// sockets live. Two implementations: a socket-directory scan for single
// hosts, and etcd for fleets of array heads.
package registry

// PluginInstance describes one reachable plugin daemon.
type PluginInstance struct {
	Name        string `json:"name"`
	SocketPath  string `json:"socket_path"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type Registry interface {
	// Register announces an instance. ttlSeconds bounds how long the
	// announcement outlives a crashed daemon; directory-backed
	// registries may ignore it.
	Register(instance PluginInstance, ttlSeconds int64) error

	// Deregister withdraws the named plugin's announcement.
	Deregister(name string) error

	// Discover lists the currently announced plugins.
	Discover() ([]PluginInstance, error)

	// Watch emits a fresh instance list whenever the set changes.
	Watch() <-chan []PluginInstance

	Close() error
}

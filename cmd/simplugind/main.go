// simplugind serves the simulator plugin on a unix socket and announces it
// in the registry. One Runner per accepted connection.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stormgmt/config"
	"stormgmt/middleware"
	"stormgmt/plugin"
	"stormgmt/registry"
	"stormgmt/simulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simplugind: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.toml (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := initLogger(cfg)

	sim := simulator.New()
	desc, version, _ := sim.PluginInfo()

	if err := os.MkdirAll(cfg.SocketDir, 0o755); err != nil {
		return fmt.Errorf("socket dir %s: %w", cfg.SocketDir, err)
	}
	socketPath := cfg.SocketPath()
	// A previous run may have left its socket behind.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stale socket %s: %w", socketPath, err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", socketPath, err)
	}

	reg, err := openRegistry(cfg)
	if err != nil {
		listener.Close()
		return err
	}
	instance := registry.PluginInstance{
		Name:        cfg.PluginName,
		SocketPath:  socketPath,
		Version:     version,
		Description: desc,
	}
	if err := reg.Register(instance, cfg.RegistryTTL); err != nil {
		listener.Close()
		return fmt.Errorf("register plugin: %w", err)
	}
	log.Info().Str("socket", socketPath).Str("plugin", cfg.PluginName).Msg("serving")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		if err := reg.Deregister(cfg.PluginName); err != nil {
			log.Warn().Err(err).Msg("deregister failed")
		}
		reg.Close()
		listener.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			log.Warn().Err(err).Msg("accept failed")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(conn, sim, cfg, log)
		}()
	}
	wg.Wait()
	os.Remove(socketPath)
	return nil
}

func serveConn(conn net.Conn, p plugin.Plugin, cfg config.Config, log zerolog.Logger) {
	clog := log.With().Str("peer", conn.RemoteAddr().String()).Logger()
	r := plugin.NewRunner(conn, p)
	r.SetLogger(clog)
	r.Use(middleware.Logging(clog))
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.IdleTimeout > 0 {
		r.SetIdleTimeout(cfg.IdleTimeout)
	}
	if err := r.Serve(); err != nil {
		clog.Warn().Err(err).Msg("connection ended with error")
	}
}

func openRegistry(cfg config.Config) (registry.Registry, error) {
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			return nil, fmt.Errorf("connect etcd: %w", err)
		}
		return reg, nil
	}
	return registry.NewDirRegistry(cfg.SocketDir)
}

func initLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", "simplugind").Logger().Level(level)
}

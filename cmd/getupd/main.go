// getupd is the supervisor daemon: it loads *.service unit files from a
// directory, starts and monitors them, watches the directory for new
// units, and exposes an HTTP control surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/kodflow/daemon/internal/api"
	"github.com/kodflow/daemon/internal/config"
	"github.com/kodflow/daemon/internal/control"
	"github.com/kodflow/daemon/internal/daemonize"
	"github.com/kodflow/daemon/internal/loader"
	"github.com/kodflow/daemon/internal/supervisor"
	"github.com/kodflow/daemon/internal/unit"
	"github.com/kodflow/daemon/internal/watcher"
)

var (
	version    = "dev"
	configPath string
	daemonFlag bool
)

func main() {
	flag.StringVar(&configPath, "config", "/etc/getup/getupd.toml", "path to configuration file")
	flag.BoolVar(&daemonFlag, "daemonize", false, "detach from the controlling terminal")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("getupd %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	settingsPath := configPath
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		settingsPath = ""
	}
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := daemonize.Run(daemonize.Options{
		WorkDir:   cfg.WorkDir,
		PIDFile:   cfg.PIDFile,
		Daemonize: daemonFlag,
	}); err != nil {
		return fmt.Errorf("daemonizing: %w", err)
	}
	defer daemonize.RemovePIDFile(cfg.PIDFile)

	registry := unit.NewRegistry()
	ld := loader.New(cfg.ServicesPath, registry, cfg.Stdout)

	if _, err := ld.LoadAll(); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	channel := control.NewChannel(32)
	loop := supervisor.New(registry, channel, ld.LoadAll)

	ready := &atomic.Bool{}

	stopWatcher := make(chan struct{})
	w := watcher.New(cfg.ServicesPath, channel)
	go w.Run(stopWatcher)
	defer close(stopWatcher)

	supervisorDone := make(chan struct{})
	go func() {
		ready.Store(true)
		loop.Run()
		close(supervisorDone)
	}()

	for _, u := range registry.All() {
		channel.Post(control.Message{Kind: control.Start, Name: u.Service.Name()})
	}

	router := api.NewRouter(registry, channel, ready)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: router}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				channel.Post(control.Message{Kind: control.Reload})
			case syscall.SIGTERM, syscall.SIGINT:
				channel.Post(control.Message{Kind: control.Shutdown})
				<-supervisorDone
				server.Shutdown(context.Background())
				return nil
			}
		case <-supervisorDone:
			server.Shutdown(context.Background())
			return nil
		case err := <-serverErr:
			if err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "api server: %v\n", err)
			}
		}
	}
}

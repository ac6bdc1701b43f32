package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/cubbit/meshfs/internal/logger"
	"github.com/cubbit/meshfs/pkg/config"
	"github.com/cubbit/meshfs/pkg/fspath"
	"github.com/cubbit/meshfs/pkg/metrics"
	"github.com/cubbit/meshfs/pkg/naming"
	"github.com/cubbit/meshfs/pkg/proto"
	"github.com/cubbit/meshfs/pkg/storage"
)

const usage = `Usage: meshfs [flags] <command> [args]

Server commands:
  naming              run the naming server
  storage             run a storage server

Client commands:
  mkdir <path>        create a directory
  touch <path>        create an empty file
  ls <path>           list a directory

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to config file")
	namingAddr := flag.String("naming", "127.0.0.1:6000", "Naming service address for client commands")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)

	switch flag.Arg(0) {
	case "naming":
		runNaming(cfg)
	case "storage":
		runStorage(cfg)
	case "mkdir":
		runMkdir(*namingAddr, flag.Arg(1))
	case "touch":
		runTouch(*namingAddr, flag.Arg(1))
	case "ls":
		runLs(*namingAddr, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// runNaming starts the naming server and blocks until interrupted.
func runNaming(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := naming.New(naming.Config{
		ServiceAddr:          cfg.Naming.ServiceAddr(),
		RegistrationAddr:     cfg.Naming.RegistrationAddr(),
		ReplicationThreshold: cfg.Naming.ReplicationThreshold,
		WorkerPoolSize:       cfg.Naming.WorkerPoolSize,
		WorkerRate:           cfg.Naming.WorkerRate,
		WorkerBurst:          cfg.Naming.WorkerBurst,
	})
	if err != nil {
		log.Fatalf("Failed to create naming server: %v", err)
	}

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start naming server: %v", err)
	}

	startMetrics(ctx, cfg)
	waitForSignal()

	logger.Info("Shutting down naming server")
	cancel()
	server.Stop()
}

// runStorage starts a storage server, registers it with the naming
// server, and blocks until interrupted.
func runStorage(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := config.NewContentStore(cfg.Storage.Content)
	if err != nil {
		log.Fatalf("Failed to create content store: %v", err)
	}

	server, err := storage.New(store, storage.Config{
		Hostname:      cfg.Storage.Hostname,
		DataAddr:      cfg.Storage.DataAddr(),
		CommandAddr:   cfg.Storage.CommandAddr(),
		CopyChunkSize: cfg.Storage.CopyChunkSize,
	})
	if err != nil {
		log.Fatalf("Failed to create storage server: %v", err)
	}

	registration, err := proto.NewRegistrationStub(cfg.Storage.NamingAddr)
	if err != nil {
		log.Fatalf("Failed to create registration stub: %v", err)
	}

	if err := server.Start(registration); err != nil {
		log.Fatalf("Failed to start storage server: %v", err)
	}
	logger.Info("Storage server registered as %s", server.ID())

	startMetrics(ctx, cfg)
	waitForSignal()

	logger.Info("Shutting down storage server")
	cancel()
	server.Stop()
}

func startMetrics(ctx context.Context, cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}
	go func() {
		if err := metrics.NewServer(cfg.Metrics.Port).Serve(ctx); err != nil {
			logger.Warn("Metrics server failed: %v", err)
		}
	}()
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
}

// Client commands. Mutations wrap the naming call in an exclusive lock
// on the parent directory; queries use a shared lock on the target.

func serviceStub(addr string) *proto.ServiceStub {
	stub, err := proto.NewServiceStub(addr)
	if err != nil {
		log.Fatalf("Failed to create service stub: %v", err)
	}
	return stub
}

func parseArg(raw string) fspath.Path {
	if raw == "" {
		log.Fatalf("Missing path argument")
	}
	p, err := fspath.Parse(raw)
	if err != nil {
		log.Fatalf("Invalid path %q: %v", raw, err)
	}
	return p
}

func runMkdir(addr, raw string) {
	p := parseArg(raw)
	if p.IsRoot() {
		log.Fatalf("Cannot create the root directory")
	}
	parent, err := p.Parent()
	if err != nil {
		log.Fatalf("%v", err)
	}

	service := serviceStub(addr)
	if err := service.Lock(parent, true); err != nil {
		log.Fatalf("Failed to lock %s: %v", parent, err)
	}
	defer service.Unlock(parent, true)

	created, err := service.CreateDirectory(p)
	if err != nil {
		log.Fatalf("Failed to create directory %s: %v", p, err)
	}
	if !created {
		fmt.Printf("%s already exists\n", p)
		os.Exit(1)
	}
	fmt.Printf("Created directory %s\n", p)
}

func runTouch(addr, raw string) {
	p := parseArg(raw)
	if p.IsRoot() {
		log.Fatalf("Cannot create a file at the root path")
	}
	parent, err := p.Parent()
	if err != nil {
		log.Fatalf("%v", err)
	}

	service := serviceStub(addr)
	if err := service.Lock(parent, true); err != nil {
		log.Fatalf("Failed to lock %s: %v", parent, err)
	}
	defer service.Unlock(parent, true)

	created, err := service.CreateFile(p)
	if err != nil {
		log.Fatalf("Failed to create file %s: %v", p, err)
	}
	if !created {
		fmt.Printf("%s already exists\n", p)
		os.Exit(1)
	}
	fmt.Printf("Created file %s\n", p)
}

func runLs(addr, raw string) {
	p := parseArg(raw)

	service := serviceStub(addr)
	if err := service.Lock(p, false); err != nil {
		log.Fatalf("Failed to lock %s: %v", p, err)
	}
	defer service.Unlock(p, false)

	names, err := service.List(p)
	if err != nil {
		log.Fatalf("Failed to list %s: %v", p, err)
	}

	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
}

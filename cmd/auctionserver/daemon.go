package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	easyauction "github.com/Zappss/ido-contracts"
	"github.com/Zappss/ido-contracts/auctiondb"
	"github.com/Zappss/ido-contracts/ledger"
	"github.com/Zappss/ido-contracts/monitoring"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
)

type daemonCommand struct {
	cfg *easyauction.Config
}

func (x *daemonCommand) Execute(_ []string) error {
	cfg := x.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	logWriter := build.NewRotatingLogWriter()
	easyauction.SetupLoggers(logWriter, shutdownInterceptor)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Printf("Supported subsystems: %v\n",
			logWriter.SupportedSubsystems())
		os.Exit(0)
	}

	err = logWriter.InitLogRotator(
		filepath.Join(cfg.LogDir, "auctionserver.log"),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("unable to initialize log rotator: %v", err)
	}
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, logWriter)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var store auctiondb.Store
	switch cfg.Store {
	case "etcd":
		var sqlMirror *auctiondb.SQLStore
		if cfg.SQL.Host != "" {
			sqlMirror, err = auctiondb.NewSQLStore(cfg.SQL)
			if err != nil {
				return fmt.Errorf("unable to open SQL "+
					"mirror: %v", err)
			}
		}

		store, err = auctiondb.NewEtcdStore(
			cfg.Network, cfg.Etcd, sqlMirror,
		)
		if err != nil {
			return fmt.Errorf("unable to open etcd store: %v",
				err)
		}

	case "memory":
		store = auctiondb.NewMemoryStore()

	default:
		return fmt.Errorf("unknown store backend %v", cfg.Store)
	}

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("unable to initialize store: %v", err)
	}

	// Until an external custody backend is hooked up, the daemon runs on
	// the in-memory ledger.
	server := easyauction.NewServer(cfg, store, ledger.NewMemoryLedger())

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("unable to start server: %v", err)
	}

	if cfg.Prometheus.Active {
		cfg.Prometheus.AuctionSource = server
		exporter := monitoring.NewPrometheusExporter(cfg.Prometheus)
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("unable to start prometheus "+
				"exporter: %v", err)
		}
	}

	// Wait for any external interrupt signal.
	<-shutdownInterceptor.ShutdownChannel()

	server.Stop()

	return nil
}

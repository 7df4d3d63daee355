// Copyright 2025 Hyli
//
// Wallet node entrypoint: restores the host state from its snapshot,
// wires the invite, history, signing and prover subsystems, serves the
// API and writes a snapshot back on shutdown.

package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/hyli/wallet-node/pkg/config"
	"github.com/hyli/wallet-node/pkg/history"
	"github.com/hyli/wallet-node/pkg/host"
	"github.com/hyli/wallet-node/pkg/invite"
	"github.com/hyli/wallet-node/pkg/kvdb"
	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/node"
	"github.com/hyli/wallet-node/pkg/prover"
	"github.com/hyli/wallet-node/pkg/server"
	"github.com/hyli/wallet-node/pkg/signing"
)

func main() {
	var settingsFile string
	flag.StringVar(&settingsFile, "settings", "", "path to optional YAML settings file")
	flag.Parse()

	logger := log.New(log.Writer(), "[WalletNode] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if settingsFile != "" {
		cfg.SettingsFile = settingsFile
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("%v", err)
	}
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		logger.Fatalf("Failed to load settings: %v", err)
	}

	// Snapshot store (GoLevelDB under the data directory).
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("Failed to create data directory: %v", err)
	}
	db, err := dbm.NewDB("wallet", dbm.GoLevelDBBackend, cfg.DataDir)
	if err != nil {
		logger.Fatalf("Failed to open snapshot store: %v", err)
	}
	store := kvdb.NewKVAdapter(db)

	// Host state: snapshot if present, bootstrap payload otherwise.
	wallet, err := host.ConstructState(bootstrapPayload(cfg, logger))
	if err != nil {
		logger.Fatalf("Failed to construct wallet state: %v", err)
	}
	restored, err := wallet.Load(store)
	if err != nil {
		logger.Fatalf("Failed to restore wallet snapshot: %v", err)
	}
	if !restored {
		logger.Printf("No snapshot found, starting from constructed state")
	}
	logger.Printf("Wallet state commitment: %x", wallet.StateCommitment())

	// Invite + history services (optional without a database).
	var invites *invite.Service
	var events *history.Store
	if cfg.DatabaseURL != "" {
		signer, err := invite.NewSigner(cfg.InviteCodeSecretKey)
		if err != nil {
			logger.Fatalf("Failed to build invite signer: %v", err)
		}
		invites, err = invite.NewService(cfg.DatabaseURL, signer, model.ContractName(cfg.WalletContractName))
		if err != nil {
			if cfg.DatabaseRequired {
				logger.Fatalf("Failed to start invite service: %v", err)
			}
			logger.Printf("Invite service disabled: %v", err)
			invites = nil
		}
		events, err = history.NewStore(cfg.DatabaseURL)
		if err != nil {
			if cfg.DatabaseRequired {
				logger.Fatalf("Failed to start history store: %v", err)
			}
			logger.Printf("History indexing disabled: %v", err)
			events = nil
		}
	} else if cfg.DatabaseRequired {
		logger.Fatalf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Proving dispatch.
	var dispatcher *prover.Dispatcher
	if cfg.ProverEnabled && settings.Prover.Enabled {
		transitionProver := prover.NewTransitionProver()
		logger.Printf("Compiling transition circuit...")
		if err := transitionProver.Initialize(); err != nil {
			logger.Fatalf("Failed to initialize prover: %v", err)
		}
		dispatcher = prover.NewDispatcher(transitionProver, settings.Prover.QueueSize)
		dispatcher.Start(ctx)
		logger.Printf("Prover ready (queue size %d)", settings.Prover.QueueSize)
	}

	walletNode := node.New(wallet, model.ContractName(cfg.WalletContractName), dispatcher, events)

	// Signing service.
	registry := signing.NewRegistry(settings.Signing.RequestTimeout())
	signingHandlers := signing.NewHandlers(registry)

	// API surface.
	handlers := server.NewWalletHandlers(wallet, invites, events, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","commitment":"%x"}`, wallet.StateCommitment())
	})
	mux.HandleFunc("/state", handlers.HandleState)
	mux.HandleFunc("/account/", handlers.HandleAccount)
	mux.HandleFunc("/account_by_address/", handlers.HandleAccountByAddress)
	mux.HandleFunc("/api/consume_invite", handlers.HandleConsumeInvite)
	mux.HandleFunc("/api/tx", walletNode.HandleSubmitTx)
	mux.HandleFunc("/signing", signingHandlers.HandleSigning)
	mux.HandleFunc("/signing/submit", signingHandlers.HandleSubmit)

	apiServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Printf("API listening on %s", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("API server failed: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", server.MetricsHandler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop intake, drain, snapshot.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Printf("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	registry.Stop()
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if invites != nil {
		_ = invites.Close()
	}
	if events != nil {
		_ = events.Close()
	}

	if err := wallet.Save(store); err != nil {
		logger.Printf("Failed to write wallet snapshot: %v", err)
	} else {
		logger.Printf("Wallet snapshot written")
	}
	if err := store.Close(); err != nil {
		logger.Printf("Failed to close snapshot store: %v", err)
	}
}

// bootstrapPayload decodes the optional construct-state metadata from
// the environment-backed configuration.
func bootstrapPayload(cfg *config.Config, logger *log.Logger) *host.Constructor {
	if cfg.HyliPasswordHash == "" {
		return nil
	}
	raw, err := hex.DecodeString(cfg.InviteCodePublicKey)
	if err != nil || len(raw) != 33 {
		logger.Fatalf("INVITE_CODE_PUBLIC_KEY must be 33 hex-encoded bytes")
	}
	constructor := &host.Constructor{HyliPasswordHash: cfg.HyliPasswordHash}
	copy(constructor.InviteCodePublicKey[:], raw)
	return constructor
}

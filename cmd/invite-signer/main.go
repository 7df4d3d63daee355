// Copyright 2025 Hyli
//
// Standalone invite signer: runs only the invite store and the consume
// endpoint, for deployments that keep the signing key off the wallet
// node.

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyli/wallet-node/pkg/config"
	"github.com/hyli/wallet-node/pkg/invite"
	"github.com/hyli/wallet-node/pkg/model"
)

func main() {
	logger := log.New(log.Writer(), "[InviteSigner] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatalf("DATABASE_URL is required")
	}

	signer, err := invite.NewSigner(cfg.InviteCodeSecretKey)
	if err != nil {
		logger.Fatalf("Failed to build signer: %v", err)
	}
	service, err := invite.NewService(cfg.DatabaseURL, signer, model.ContractName(cfg.WalletContractName))
	if err != nil {
		logger.Fatalf("Failed to start invite service: %v", err)
	}
	defer service.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/consume_invite", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Code   string `json:"code"`
			Wallet string `json:"wallet"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		blob, err := service.Consume(r.Context(), body.Code, body.Wallet)
		if err != nil {
			logger.Printf("Error consuming invite: %v", err)
			http.Error(w, "invite code not found or already used", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(blob)
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.Printf("Invite signer listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

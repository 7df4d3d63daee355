// Copyright 2025 Hyli
//
// Wallet API Handlers
// Read surfaces over the host state plus the invite consume endpoint.

package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/hyli/wallet-node/pkg/history"
	"github.com/hyli/wallet-node/pkg/host"
	"github.com/hyli/wallet-node/pkg/invite"
	"github.com/hyli/wallet-node/pkg/wallet"
)

// WalletHandlers provides HTTP handlers for wallet state queries and
// invite consumption.
type WalletHandlers struct {
	wallet  *host.Wallet
	invites *invite.Service
	events  *history.Store
	logger  *log.Logger
}

// NewWalletHandlers creates the wallet API handlers. invites and events
// may be nil when the node runs without a database.
func NewWalletHandlers(w *host.Wallet, invites *invite.Service, events *history.Store, logger *log.Logger) *WalletHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[WalletAPI] ", log.LstdFlags)
	}
	return &WalletHandlers{wallet: w, invites: invites, events: events, logger: logger}
}

// stateResponse is the full wallet view for GET /state.
type stateResponse struct {
	Commitment          string               `json:"commitment"`
	SmtRoot             string               `json:"smt_root"`
	InviteCodePublicKey string               `json:"invite_code_public_key"`
	Accounts            []wallet.AccountInfo `json:"accounts"`
}

// accountResponse is the per-account view for GET /account/{account}.
type accountResponse struct {
	Account     string               `json:"account"`
	AuthMethod  wallet.AuthMethod    `json:"auth_method"`
	SessionKeys []wallet.SessionKey  `json:"session_keys"`
	Nonce       uint64               `json:"nonce"`
	Salt        string               `json:"salt"`
}

// HandleState handles GET /state
func (h *WalletHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	root := h.wallet.SMTRoot()
	pub := h.wallet.InviteCodePublicKey()
	h.writeJSON(w, http.StatusOK, stateResponse{
		Commitment:          hex.EncodeToString(h.wallet.StateCommitment()),
		SmtRoot:             hex.EncodeToString(root[:]),
		InviteCodePublicKey: hex.EncodeToString(pub[:]),
		Accounts:            h.wallet.Accounts(),
	})
}

// HandleAccount handles GET /account/{account} and
// GET /account/{account}/history
func (h *WalletHandlers) HandleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/account/"), "/")
	if account, ok := strings.CutSuffix(path, "/history"); ok {
		h.handleAccountHistory(w, r, account)
		return
	}
	account := path
	if account == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "Account name is required")
		return
	}

	record, err := h.wallet.Get(account)
	if err != nil {
		if errors.Is(err, host.ErrUnknownAccount) {
			h.writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", fmt.Sprintf("No account named %s", account))
			return
		}
		h.logger.Printf("Error getting account %s: %v", account, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve account")
		return
	}
	salt, err := h.wallet.GetSalt(account)
	if err != nil {
		salt = ""
	}

	h.writeJSON(w, http.StatusOK, accountResponse{
		Account:     record.Identity,
		AuthMethod:  record.AuthMethod,
		SessionKeys: record.SessionKeys,
		Nonce:       record.Nonce,
		Salt:        salt,
	})
}

func (h *WalletHandlers) handleAccountHistory(w http.ResponseWriter, r *http.Request, account string) {
	if h.events == nil {
		h.writeError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "History indexing is not enabled")
		return
	}
	events, err := h.events.ListByAccount(r.Context(), account, 100)
	if err != nil {
		h.logger.Printf("Error listing history for %s: %v", account, err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve history")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"account": account, "events": events})
}

// HandleAccountByAddress handles GET /account_by_address/{hex}. Linear
// scan; returns the first account whose Ethereum or HyliApp address
// matches after normalization.
func (h *WalletHandlers) HandleAccountByAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	address := strings.Trim(strings.TrimPrefix(r.URL.Path, "/account_by_address/"), "/")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", "Address is required")
		return
	}
	wanted := strings.ToLower(strings.TrimPrefix(address, "0x"))

	for _, record := range h.wallet.Accounts() {
		var got string
		switch record.AuthMethod.Enum {
		case wallet.AuthKindEthereum:
			got = strings.ToLower(strings.TrimPrefix(record.AuthMethod.Ethereum.Address, "0x"))
		case wallet.AuthKindHyliApp:
			got = strings.ToLower(strings.TrimPrefix(record.AuthMethod.HyliApp.Address, "0x"))
		default:
			continue
		}
		if got == wanted {
			salt, _ := h.wallet.GetSalt(record.Identity)
			h.writeJSON(w, http.StatusOK, accountResponse{
				Account:     record.Identity,
				AuthMethod:  record.AuthMethod,
				SessionKeys: record.SessionKeys,
				Nonce:       record.Nonce,
				Salt:        salt,
			})
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "ACCOUNT_NOT_FOUND", fmt.Sprintf("No account with address %s", address))
}

// consumeInviteRequest is the body for POST /api/consume_invite.
type consumeInviteRequest struct {
	Code   string `json:"code"`
	Wallet string `json:"wallet"`
}

// HandleConsumeInvite handles POST /api/consume_invite
func (h *WalletHandlers) HandleConsumeInvite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}
	if h.invites == nil {
		h.writeError(w, http.StatusServiceUnavailable, "INVITES_DISABLED", "Invite service is not enabled")
		return
	}
	var body consumeInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON with code and wallet")
		return
	}
	blob, err := h.invites.Consume(r.Context(), body.Code, body.Wallet)
	if err != nil {
		h.logger.Printf("Error consuming invite: %v", err)
		h.writeError(w, http.StatusInternalServerError, "INVITE_REJECTED", "Invite code not found or already used")
		return
	}
	invitesConsumed.Inc()
	h.writeJSON(w, http.StatusOK, blob)
}

func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Printf("Error encoding response: %v", err)
	}
}

func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

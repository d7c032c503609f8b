package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/stakemate/stakemate/internal/contracts"
	"github.com/stakemate/stakemate/internal/incentives"
	"github.com/stakemate/stakemate/internal/wallet"
	"github.com/stakemate/stakemate/pkg/types"
)

// routes builds the daemon's HTTP API.
func (d *Daemon) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/status", d.handleStatus)
	mux.HandleFunc("/v1/positions", d.handlePositions)
	mux.HandleFunc("/v1/positions/", d.handlePositionOp)
	mux.HandleFunc("/v1/incentives", d.handleIncentives)
	mux.HandleFunc("/v1/incentives/current", d.handleSetCurrentIncentive)
	mux.HandleFunc("/v1/rewards", d.handleRewards)
	mux.HandleFunc("/v1/rewards/claim", d.handleClaim)
	mux.HandleFunc("/v1/connect", d.handleConnect)
	mux.HandleFunc("/v1/disconnect", d.handleDisconnect)
	mux.HandleFunc("/v1/reload", d.handleReload)
	mux.HandleFunc("/v1/stream", d.hub.serve)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps well-known failures onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, contracts.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, wallet.ErrNoSession):
		return http.StatusForbidden
	case errors.Is(err, incentives.ErrUnknownIncentive):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := map[string]interface{}{
		"connected": d.session.Connected(),
		"signer":    d.session.HasSigner(),
		"ready":     d.gateway.Ready() && d.sync.Ready(),
	}
	if d.session.Connected() {
		status["network"] = d.session.Network()
		status["address"] = d.session.Address().Hex()
	}
	if current, ok := d.directory.Current(); ok {
		status["incentive"] = current.ID
	}
	writeJSON(w, http.StatusOK, status)
}

func (d *Daemon) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ready":     d.sync.Ready(),
		"positions": d.sync.Positions(),
	})
}

// handlePositionOp serves /v1/positions/{tokenId}/{op}.
func (d *Daemon) handlePositionOp(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/positions/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	tokenID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	op := parts[1]
	ctx := r.Context()

	switch {
	case r.Method == http.MethodGet && op == "stake-step":
		step, err := d.flows.NextStakeStep(ctx, tokenID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]types.StakeStep{"step": step})
	case r.Method == http.MethodGet && op == "withdraw-step":
		step, err := d.flows.NextWithdrawStep(ctx, tokenID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]types.WithdrawStep{"step": step})
	case r.Method == http.MethodGet && op == "reward":
		result, err := d.estimator.PositionReward(ctx, tokenID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case r.Method == http.MethodPost:
		var opErr error
		switch op {
		case "approve":
			opErr = d.flows.Approve(ctx, tokenID)
		case "transfer":
			opErr = d.flows.Transfer(ctx, tokenID)
		case "stake":
			opErr = d.flows.Stake(ctx, tokenID)
		case "unstake":
			opErr = d.flows.Unstake(ctx, tokenID)
		case "withdraw":
			opErr = d.flows.Withdraw(ctx, tokenID)
		default:
			http.NotFound(w, r)
			return
		}
		if opErr != nil {
			writeError(w, errorStatus(opErr), opErr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (d *Daemon) handleIncentives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, d.incentiveView())
}

func (d *Daemon) handleSetCurrentIncentive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := d.directory.SetCurrent(req.ID); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	// The selection change invalidated the collection; rebuild it.
	if err := d.sync.Reload(r.Context()); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	_ = d.estimator.Refresh(r.Context())
	writeJSON(w, http.StatusOK, d.incentiveView())
}

func (d *Daemon) handleRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := map[string]interface{}{"ready": false}
	if amount, ok := d.estimator.Claimable(); ok {
		resp["ready"] = true
		resp["claimable"] = amount.String()
	}
	if token, err := d.gateway.RewardToken(); err == nil {
		if info, err := token.Info(r.Context(), d.gateway.Account()); err == nil {
			resp["token"] = map[string]interface{}{
				"address":  info.Address.Hex(),
				"symbol":   info.Symbol,
				"decimals": info.Decimals,
				"balance":  info.Balance.String(),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Daemon) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := d.flows.Claim(r.Context()); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (d *Daemon) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Network      string `json:"network"`
		Address      string `json:"address,omitempty"`
		KeystoreFile string `json:"keystore_file,omitempty"`
		Passphrase   string `json:"passphrase,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	if req.KeystoreFile != "" {
		err = d.session.ConnectKeystore(types.Network(req.Network), req.KeystoreFile, req.Passphrase)
	} else {
		err = d.session.ConnectReadOnly(types.Network(req.Network), req.Address)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"network": d.session.Network(),
		"address": d.session.Address().Hex(),
		"signer":  d.session.HasSigner(),
	})
}

func (d *Daemon) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	d.session.Disconnect()
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (d *Daemon) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := d.sync.Reload(r.Context()); err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	_ = d.estimator.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": len(d.sync.Positions()),
	})
}

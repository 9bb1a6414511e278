package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/regolith-labs/ore-pool-sub000/params"
	"github.com/regolith-labs/ore-pool-sub000/pool"
	"github.com/regolith-labs/ore-pool-sub000/pow"
)

// withRequestLog tags every request with an id and logs its outcome timing.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

func pathAuthority(r *http.Request) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(mux.Vars(r)["authority"])
}

type addressResponse struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func (s *Server) handleAddress(w http.ResponseWriter, r *http.Request) {
	addr, bump := s.op.PoolAddress()
	writeJSON(w, http.StatusOK, addressResponse{Address: addr.String(), Bump: bump})
}

type registerRequest struct {
	Authority string `json:"authority"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	rec, err := s.op.Directory().GetOrRegister(r.Context(), authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	authority, err := pathAuthority(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	rec, err := s.op.Directory().Get(authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type challengeResponse struct {
	Challenge       string `json:"challenge"` // base64
	LastHashAt      int64  `json:"last_hash_at"`
	MinDifficulty   uint64 `json:"min_difficulty"`
	CutoffSeconds   uint64 `json:"cutoff"`
	NumTotalMembers uint64 `json:"num_total_members"`
	DeviceID        uint64 `json:"device_id"`
	NumDevices      uint64 `json:"num_devices"`
}

// handleChallenge serves the active round. Multi-device miners pass ?device to
// subdivide their nonce partition client-side; the server only validates and
// echoes the assignment.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if _, err := pathAuthority(r); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	var device uint64
	if raw := r.URL.Query().Get("device"); raw != "" {
		var err error
		device, err = strconv.ParseUint(raw, 10, 64)
		if err != nil || device >= params.MaxDevicesPerMember {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid device id"})
			return
		}
	}

	ch, numMembers, _ := s.op.ChallengeInfo()
	writeJSON(w, http.StatusOK, challengeResponse{
		Challenge:       base64.StdEncoding.EncodeToString(ch.Challenge[:]),
		LastHashAt:      ch.LastHashAt,
		MinDifficulty:   ch.MinDifficulty,
		// Time left is measured at response time, not frozen at install.
		CutoffSeconds:   pool.Cutoff(ch.LastHashAt, time.Now().Unix()),
		NumTotalMembers: numMembers,
		DeviceID:        device,
		NumDevices:      params.MaxDevicesPerMember,
	})
}

type contributeRequest struct {
	Authority string `json:"authority"`
	Solution  string `json:"solution"`  // base64, digest || nonce
	Signature string `json:"signature"` // base58, over the solution bytes
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	if !s.limiters.allow(req.Authority) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Solution)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid solution encoding"})
		return
	}
	sol, ok := pow.SolutionFromBytes(raw)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid solution length"})
		return
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid signature"})
		return
	}

	c, err := s.op.Admit(&pool.ContributionRequest{Authority: authority, Solution: sol, Signature: sig})
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.op.SubmitContribution(c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type eventResponse struct {
	*pool.MiningEvent
	MemberReward uint64 `json:"member_reward"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	authority, err := pathAuthority(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	ev, ok := s.op.LatestEvent()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no mining event yet"})
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{
		MiningEvent:  ev,
		MemberReward: ev.MemberRewards[authority.String()],
	})
}

type commitRequest struct {
	Authority   string `json:"authority"`
	Transaction string `json:"transaction"` // base64, partially signed
	Hash        string `json:"hash"`        // client-chosen blockhash, informational
}

type commitResponse struct {
	Balance   uint64 `json:"balance"`
	Signature string `json:"signature"`
}

func (s *Server) handleCommitBalance(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}
	authority, err := solana.PublicKeyFromBase58(req.Authority)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid authority"})
		return
	}
	rawTx, err := base64.StdEncoding.DecodeString(req.Transaction)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction encoding"})
		return
	}

	balance, sig, err := s.op.CommitBalance(r.Context(), authority, rawTx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{Balance: balance, Signature: sig.String()})
}

// webhookTx is the enhanced-transaction shape the webhook sender delivers.
type webhookTx struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Timestamp int64  `json:"timestamp"`
	Meta      struct {
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}

// handleWebhook authenticates the sender and fans the delivered transactions
// into the attribution consumer. Both a single object and a batch array are
// accepted.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != s.webhookToken {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "bad webhook token"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}
	var txs []webhookTx
	if err := json.Unmarshal(body, &txs); err != nil {
		var single webhookTx
		if err := json.Unmarshal(body, &single); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid webhook payload"})
			return
		}
		txs = []webhookTx{single}
	}

	for _, tx := range txs {
		sig, err := solana.SignatureFromBase58(tx.Signature)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction signature"})
			return
		}
		ev := &pool.WebhookEvent{
			Signature: sig,
			Slot:      tx.Slot,
			Timestamp: tx.Timestamp,
			Logs:      tx.Meta.LogMessages,
		}
		if err := s.op.HandleWebhook(ev); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/owlet-learn/owlet-core/internal/infrastructure/external/gameapi"
	"github.com/owlet-learn/owlet-core/pkg/datekey"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// maxBodyBytes caps request bodies. Progress payloads are tiny.
const maxBodyBytes = 64 << 10 // 64 KB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness, pinging the database when one is wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.DB.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", logger.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": "database unreachable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": s.Uptime().String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// handleMyProgress returns the stored totals for the authenticated
// account. A brand-new account reads as zeros.
func (s *Server) handleMyProgress(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFrom(r.Context())

	p, err := s.deps.Progress.GetProgress(r.Context(), accountID)
	if err != nil {
		s.logger.Error("failed to load progress",
			logger.AccountID(accountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load progress")
		return
	}

	writeJSON(w, http.StatusOK, &gameapi.ProgressDTO{
		Coins:  p.Coins,
		Streak: p.Streak,
	})
}

// handleMergeProgress is the single write endpoint. The request shape
// selects one of three paths:
//
//   - guestId set: credit a guest profile's earned progress to the
//     account, exactly once per guest id
//   - coins_earned / streak_earned set: credit a delta since the
//     client's last sync, clamped by the daily coin cap
//   - totals only: reconcile keeping the greater value per counter
func (s *Server) handleMergeProgress(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFrom(r.Context())

	var req gameapi.MergeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}

	if err := s.deps.Progress.EnsureAccount(r.Context(), accountID); err != nil {
		s.logger.Error("failed to ensure account",
			logger.AccountID(accountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge progress")
		return
	}

	day := s.capDay(req.TZ)

	switch {
	case req.GuestID != "":
		s.mergeGuest(w, r, accountID, day, req)
	case req.Progress.CoinsEarned != nil || req.Progress.StreakEarned != nil:
		s.applyDelta(w, r, accountID, day, req)
	default:
		s.reconcileTotals(w, r, accountID, day, req)
	}
}

// mergeGuest credits a guest's earned coins and streak day to the
// account. The request carries deltas, not the guest's raw counters, so
// the account's streak grows by at most one. Replayed merges are
// harmless: the totals come back unchanged.
func (s *Server) mergeGuest(w http.ResponseWriter, r *http.Request, accountID string, day datekey.Key, req gameapi.MergeRequest) {
	coinsEarned := 0
	if req.Progress.CoinsEarned != nil && *req.Progress.CoinsEarned > 0 {
		coinsEarned = *req.Progress.CoinsEarned
	}
	streakEarned := 0
	if req.Progress.StreakEarned != nil && *req.Progress.StreakEarned > 0 {
		streakEarned = 1
	}

	p, merged, err := s.deps.Progress.MergeGuest(
		r.Context(), accountID, req.GuestID, coinsEarned, streakEarned)
	if err != nil {
		s.logger.Error("guest merge failed",
			logger.AccountID(accountID), logger.GuestID(req.GuestID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge progress")
		return
	}

	if merged {
		s.logger.Info("guest profile merged",
			logger.AccountID(accountID),
			logger.GuestID(req.GuestID),
			logger.Coins(coinsEarned),
			logger.Streak(streakEarned),
		)
	}

	s.writeMergeResponse(w, r, accountID, day, p.Coins, p.Streak)
}

// applyDelta credits earned coins and streak days, clamping coins
// against the daily cap.
func (s *Server) applyDelta(w http.ResponseWriter, r *http.Request, accountID string, day datekey.Key, req gameapi.MergeRequest) {
	coinsEarned := 0
	if req.Progress.CoinsEarned != nil && *req.Progress.CoinsEarned > 0 {
		coinsEarned = *req.Progress.CoinsEarned
	}
	streakEarned := 0
	if req.Progress.StreakEarned != nil && *req.Progress.StreakEarned > 0 {
		streakEarned = 1
	}

	granted := coinsEarned
	capReached := false
	haveCap := false
	remaining := 0

	if s.deps.Cap != nil {
		grant, err := s.deps.Cap.Grant(r.Context(), accountID, day, coinsEarned)
		if err != nil {
			// The cap is an anti-abuse hint. A counter outage must not
			// block progress, so credit the full delta and move on.
			s.logger.Warn("cap counter unavailable, granting full delta",
				logger.AccountID(accountID), logger.Err(err))
		} else {
			granted = grant.Granted
			capReached = grant.CapReached
			remaining = grant.Remaining
			haveCap = true
		}
	}

	p, err := s.deps.Progress.ApplyDelta(r.Context(), accountID, granted, streakEarned)
	if err != nil {
		s.logger.Error("failed to apply progress delta",
			logger.AccountID(accountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge progress")
		return
	}

	resp := &gameapi.MergeResponse{
		Coins:      p.Coins,
		Streak:     p.Streak,
		CapReached: capReached,
	}
	if haveCap {
		resp.RemainingToday = &remaining
	}

	writeJSON(w, http.StatusOK, resp)
}

// reconcileTotals handles full-state pushes, keeping the greater value
// per counter.
func (s *Server) reconcileTotals(w http.ResponseWriter, r *http.Request, accountID string, day datekey.Key, req gameapi.MergeRequest) {
	p, err := s.deps.Progress.ReconcileTotals(
		r.Context(), accountID, req.Progress.Coins, req.Progress.Streak)
	if err != nil {
		s.logger.Error("failed to reconcile totals",
			logger.AccountID(accountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to merge progress")
		return
	}

	s.writeMergeResponse(w, r, accountID, day, p.Coins, p.Streak)
}

// writeMergeResponse attaches the cap hint to a merge response when a
// counter is wired.
func (s *Server) writeMergeResponse(w http.ResponseWriter, r *http.Request, accountID string, day datekey.Key, coins, streak int) {
	resp := &gameapi.MergeResponse{
		Coins:  coins,
		Streak: streak,
	}

	if s.deps.Cap != nil {
		remaining, err := s.deps.Cap.Remaining(r.Context(), accountID, day)
		if err != nil {
			s.logger.Warn("failed to read cap remaining",
				logger.AccountID(accountID), logger.Err(err))
		} else {
			resp.RemainingToday = &remaining
			resp.CapReached = remaining == 0
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// capDay resolves the calendar day for cap accounting from the
// client-reported timezone, falling back to the reference zone.
func (s *Server) capDay(tz string) datekey.Key {
	if tz == "" {
		return datekey.Today()
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return datekey.Today()
	}

	return datekey.Of(time.Now().In(loc))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEV TOKEN MINT
// ══════════════════════════════════════════════════════════════════════════════

// handleDevToken mints a session token for an arbitrary account id.
// Only routed when Config.DevTokenEndpoint is on.
func (s *Server) handleDevToken(w http.ResponseWriter, r *http.Request) {
	var req gameapi.TokenRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil || req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "account_id is required")
		return
	}

	if err := s.deps.Progress.EnsureAccount(r.Context(), req.AccountID); err != nil {
		s.logger.Error("failed to ensure account",
			logger.AccountID(req.AccountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to mint token")
		return
	}

	token, err := s.deps.Tokens.Issue(req.AccountID)
	if err != nil {
		s.logger.Error("failed to issue token",
			logger.AccountID(req.AccountID), logger.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to mint token")
		return
	}

	writeJSON(w, http.StatusOK, &gameapi.TokenResponse{Token: token})
}

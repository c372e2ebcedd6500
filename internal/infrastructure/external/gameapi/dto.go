package gameapi

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// ProgressDTO is the server's view of an account's progress.
type ProgressDTO struct {
	Coins  int `json:"coins"`
	Streak int `json:"streak"`
}

// MergeProgressDTO carries the client's progress in a merge request.
// Guest merges and incremental pushes send the earned deltas; full-state
// reconciliation sends only the totals.
type MergeProgressDTO struct {
	Coins  int `json:"coins,omitempty"`
	Streak int `json:"streak,omitempty"`

	// CoinsEarned is the coins earned since the last successful sync.
	CoinsEarned *int `json:"coins_earned,omitempty"`

	// StreakEarned is 1 when the streak advanced since the last successful
	// sync, otherwise 0. The server only needs to know whether today
	// counted, not by how much the counter moved.
	StreakEarned *int `json:"streak_earned,omitempty"`
}

// MergeRequest is the POST /game/merge-progress payload.
type MergeRequest struct {
	// GuestID identifies pre-login progress to fold into the account.
	// Empty on ordinary progress pushes.
	GuestID string `json:"guestId,omitempty"`

	// TZ is the client's IANA time zone, used for the daily cap window.
	TZ string `json:"tz"`

	Progress MergeProgressDTO `json:"progress"`
}

// MergeResponse is the server's reply to a merge. Coins and Streak are the
// authoritative post-merge totals.
type MergeResponse struct {
	Coins  int `json:"coins"`
	Streak int `json:"streak"`

	// RemainingToday is how many coins can still be earned before the
	// daily cap. Nil when the server does not enforce a cap.
	RemainingToday *int `json:"remaining_today,omitempty"`

	// CapReached reports that the cap swallowed part of this push.
	CapReached bool `json:"cap_reached"`
}

// TokenRequest is the POST /auth/token payload.
type TokenRequest struct {
	AccountID string `json:"account_id"`
}

// TokenResponse carries a signed session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// APIErrorDTO is the error body returned for non-2xx responses.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AccountProgress is the server-side progress record for one account.
type AccountProgress struct {
	AccountID string
	Coins     int
	Streak    int
	UpdatedAt time.Time
}

// ProgressRepository stores account progress totals.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// EnsureAccount creates the account and its progress row if they don't
// exist, and bumps last_seen_at either way.
func (r *ProgressRepository) EnsureAccount(ctx context.Context, accountID string) error {
	query := `
		INSERT INTO accounts (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET last_seen_at = NOW()
	`
	if _, err := r.conn.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}

	query = `
		INSERT INTO progress (account_id) VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`
	if _, err := r.conn.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("failed to ensure progress row: %w", err)
	}

	return nil
}

// GetProgress returns the progress totals for an account. An account
// without a progress row reads as zero totals.
func (r *ProgressRepository) GetProgress(ctx context.Context, accountID string) (*AccountProgress, error) {
	query := `
		SELECT account_id, coins, streak, updated_at
		FROM progress
		WHERE account_id = $1
	`

	p := &AccountProgress{AccountID: accountID}
	row := r.conn.QueryRow(ctx, query, accountID)
	if err := row.Scan(&p.AccountID, &p.Coins, &p.Streak, &p.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return &AccountProgress{AccountID: accountID, UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

// ApplyDelta credits earned coins and streak days to an account and
// returns the resulting totals. Deltas must be non-negative; the caller
// clamps coins against the daily cap before crediting.
func (r *ProgressRepository) ApplyDelta(ctx context.Context, accountID string, coinsEarned, streakEarned int) (*AccountProgress, error) {
	if coinsEarned < 0 || streakEarned < 0 {
		return nil, fmt.Errorf("postgres: negative delta for account %s", accountID)
	}

	query := `
		INSERT INTO progress (account_id, coins, streak, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			coins = progress.coins + $2,
			streak = progress.streak + $3,
			updated_at = NOW()
		RETURNING account_id, coins, streak, updated_at
	`

	p := &AccountProgress{}
	row := r.conn.QueryRow(ctx, query, accountID, coinsEarned, streakEarned)
	if err := row.Scan(&p.AccountID, &p.Coins, &p.Streak, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to apply delta: %w", err)
	}

	return p, nil
}

// ReconcileTotals folds client-reported totals into the stored row,
// keeping the greater value per counter, and returns the result. Used
// for full-state pushes where the client doesn't know what it earned
// since the last sync.
func (r *ProgressRepository) ReconcileTotals(ctx context.Context, accountID string, coins, streak int) (*AccountProgress, error) {
	if coins < 0 {
		coins = 0
	}
	if streak < 0 {
		streak = 0
	}

	query := `
		INSERT INTO progress (account_id, coins, streak, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			coins = GREATEST(progress.coins, $2),
			streak = GREATEST(progress.streak, $3),
			updated_at = NOW()
		RETURNING account_id, coins, streak, updated_at
	`

	p := &AccountProgress{}
	row := r.conn.QueryRow(ctx, query, accountID, coins, streak)
	if err := row.Scan(&p.AccountID, &p.Coins, &p.Streak, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to reconcile totals: %w", err)
	}

	return p, nil
}

// MergeGuest credits a guest profile's earned progress to an account,
// exactly once per guest id. The guest sends what it earned, not its raw
// counters: coins are added and streakEarned is a 0|1 "a streak day was
// earned" signal, so a guest's unrelated streak length can never inflate
// the account's streak. The second return value reports whether this
// call performed the merge; a replayed merge returns the current totals
// with merged=false and no changes.
func (r *ProgressRepository) MergeGuest(ctx context.Context, accountID, guestID string, coinsEarned, streakEarned int) (*AccountProgress, bool, error) {
	if coinsEarned < 0 {
		coinsEarned = 0
	}
	if streakEarned < 0 {
		streakEarned = 0
	}
	if streakEarned > 1 {
		streakEarned = 1
	}

	claim := `
		INSERT INTO merged_guests (guest_id, account_id, coins_merged, streak_merged)
		VALUES ($1, $2, $3, $4)
	`
	credit := `
		INSERT INTO progress (account_id, coins, streak, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			coins = progress.coins + $2,
			streak = progress.streak + $3,
			updated_at = NOW()
		RETURNING account_id, coins, streak, updated_at
	`

	p := &AccountProgress{}
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, claim, guestID, accountID, coinsEarned, streakEarned); err != nil {
			return fmt.Errorf("failed to claim guest merge: %w", err)
		}

		row := tx.QueryRow(ctx, credit, accountID, coinsEarned, streakEarned)
		return row.Scan(&p.AccountID, &p.Coins, &p.Streak, &p.UpdatedAt)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			// Replayed merge: the guest was already folded in.
			current, getErr := r.GetProgress(ctx, accountID)
			if getErr != nil {
				return nil, false, getErr
			}
			return current, false, nil
		}
		return nil, false, err
	}

	return p, true, nil
}

// MergedGuestCount returns the number of guest profiles merged into an
// account. Exposed for operational queries.
func (r *ProgressRepository) MergedGuestCount(ctx context.Context, accountID string) (int, error) {
	query := `SELECT COUNT(*) FROM merged_guests WHERE account_id = $1`

	var count int
	if err := r.conn.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count merged guests: %w", err)
	}

	return count, nil
}

package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopchat-ai/shopchat/internal/conversation"
)

// Ledger persists one row per billable LLM call and answers usage rollups.
// It satisfies conversation.CostLedger.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

var _ conversation.CostLedger = (*Ledger)(nil)

// RecordUsage appends a usage row. Callers treat failures as log-only; the
// ledger never blocks a reply.
func (l *Ledger) RecordUsage(ctx context.Context, entry conversation.UsageEntry) error {
	occurred := entry.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO llm_cost_ledger (id, merchant_id, session_key, provider, model, prompt_tokens, completion_tokens, cost_usd, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), entry.MerchantID, entry.SessionKey, entry.Provider, entry.Model,
		entry.PromptTokens, entry.CompletionTokens, entry.CostUSD, occurred)
	if err != nil {
		return fmt.Errorf("billing: record usage: %w", err)
	}
	return nil
}

// MonthlySummary is a merchant's aggregated spend for one calendar month.
type MonthlySummary struct {
	MerchantID       string  `json:"merchant_id"`
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	Calls            int     `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// MonthToDate aggregates a merchant's spend for the month containing now.
func (l *Ledger) MonthToDate(ctx context.Context, merchantID string, now time.Time) (*MonthlySummary, error) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	summary := &MonthlySummary{
		MerchantID: merchantID,
		Year:       now.Year(),
		Month:      int(now.Month()),
	}
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM llm_cost_ledger
		WHERE merchant_id = $1 AND occurred_at >= $2 AND occurred_at < $3`,
		merchantID, start, end,
	).Scan(&summary.Calls, &summary.PromptTokens, &summary.CompletionTokens, &summary.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("billing: month to date: %w", err)
	}
	return summary, nil
}

// ModelBreakdown is spend per provider/model pair within a window.
type ModelBreakdown struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Calls    int     `json:"calls"`
	CostUSD  float64 `json:"cost_usd"`
}

// BreakdownByModel reports spend per model over [from, to).
func (l *Ledger) BreakdownByModel(ctx context.Context, merchantID string, from, to time.Time) ([]ModelBreakdown, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT provider, model, COUNT(*), COALESCE(SUM(cost_usd), 0)
		FROM llm_cost_ledger
		WHERE merchant_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY provider, model
		ORDER BY SUM(cost_usd) DESC`,
		merchantID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("billing: breakdown query: %w", err)
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var b ModelBreakdown
		if err := rows.Scan(&b.Provider, &b.Model, &b.Calls, &b.CostUSD); err != nil {
			return nil, fmt.Errorf("billing: scan breakdown: %w", err)
		}
		breakdown = append(breakdown, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("billing: iterate breakdown: %w", err)
	}
	return breakdown, nil
}

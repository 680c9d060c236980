package billing

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopchat-ai/shopchat/internal/conversation"
)

func TestLedger_RecordUsage(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ledger := NewLedger(db)
	occurred := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO llm_cost_ledger`).
		WithArgs(sqlmock.AnyArg(), "m-1", "psid-9", "openai", "gpt-4o-mini", 1000, 500, 0.00045, occurred).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ledger.RecordUsage(context.Background(), conversation.UsageEntry{
		MerchantID:       "m-1",
		SessionKey:       "psid-9",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		PromptTokens:     1000,
		CompletionTokens: 500,
		CostUSD:          0.00045,
		OccurredAt:       occurred,
	})
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedger_MonthToDate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ledger := NewLedger(db)
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	monthStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("m-1", monthStart, monthEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count", "prompt", "completion", "cost"}).
			AddRow(42, 51000, 12000, 0.0183))

	summary, err := ledger.MonthToDate(context.Background(), "m-1", now)
	if err != nil {
		t.Fatalf("MonthToDate: %v", err)
	}
	if summary.Calls != 42 || summary.CostUSD != 0.0183 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Year != 2026 || summary.Month != 8 {
		t.Fatalf("window = %d-%d", summary.Year, summary.Month)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLedger_BreakdownByModel(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	ledger := NewLedger(db)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT provider, model`).
		WithArgs("m-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"provider", "model", "calls", "cost"}).
			AddRow("openai", "gpt-4o-mini", 40, 0.017).
			AddRow("gemini", "gemini-1.5-flash", 2, 0.0013))

	breakdown, err := ledger.BreakdownByModel(context.Background(), "m-1", from, to)
	if err != nil {
		t.Fatalf("BreakdownByModel: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("rows = %d", len(breakdown))
	}
	if breakdown[0].Model != "gpt-4o-mini" || breakdown[0].Calls != 40 {
		t.Fatalf("first row = %+v", breakdown[0])
	}
}

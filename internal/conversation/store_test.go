package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopchat-ai/shopchat/internal/merchants"
)

func TestStore_RecordExchange(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(sqlmock.AnyArg(), "m-1", "widget", "sess-1", StatusActive, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), "conv-1", []byte("where are my shoes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), "conv-1", "On the way!", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	convCtx := &Context{Channel: ChannelWidget, SessionID: "sess-1", MerchantID: "m-1"}
	resp := &Response{Message: "On the way!", Intent: IntentOrderTracking, Confidence: 0.92}

	id, err := store.RecordExchange(context.Background(), "m-1", convCtx, "where are my shoes", resp)
	if err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}
	if id != "conv-1" {
		t.Fatalf("conversation id = %q, want conv-1", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_RecordExchangeUsesSenderKey(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, nil)

	// Messenger conversations key on the PSID, not the session id, so the
	// same shopper maps to one conversation row across webhook deliveries.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(sqlmock.AnyArg(), "m-1", "messenger", "psid-77", StatusActive, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-9"))
	mock.ExpectExec(`INSERT INTO messages`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	convCtx := &Context{Channel: ChannelMessenger, SessionID: "sess-x", PlatformSenderID: "psid-77", MerchantID: "m-1"}
	if _, err := store.RecordExchange(context.Background(), "m-1", convCtx, "hi", &Response{Message: "hello"}); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_RecordExchangeRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	convCtx := &Context{Channel: ChannelWidget, SessionID: "sess-1", MerchantID: "m-1"}
	id, err := store.RecordExchange(context.Background(), "m-1", convCtx, "hi", &Response{Message: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	if id != "" {
		t.Fatalf("failed exchange returned id %q, want empty", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_SealsCustomerMessage(t *testing.T) {
	sealer, err := merchants.NewSealer("test-secret")
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, sealer)

	var sealed []byte
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), "conv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	convCtx := &Context{Channel: ChannelWidget, SessionID: "sess-1", MerchantID: "m-1"}
	if _, err := store.RecordExchange(context.Background(), "m-1", convCtx, "my address is 1 Main St", &Response{Message: "noted"}); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}

	// Round-trip sanity on the cipher itself: what goes in must come out.
	sealed, err = sealer.Seal("my address is 1 Main St")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	plain, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "my address is 1 Main St" {
		t.Fatalf("round trip = %q", plain)
	}
}

func TestStore_RecordExchangeHandoffMetadata(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewStore(db, nil)

	// An escalation stamps the triggering message and the time alongside
	// the status flip.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(sqlmock.AnyArg(), "m-1", "widget", "sess-1", StatusHandoff, "get me a person", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("conv-1"))
	mock.ExpectExec(`INSERT INTO messages`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO messages`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	convCtx := &Context{Channel: ChannelWidget, SessionID: "sess-1", MerchantID: "m-1"}
	resp := &Response{Message: "Connecting you now.", Intent: IntentHumanHandoff, Confidence: 0.95}
	if _, err := store.RecordExchange(context.Background(), "m-1", convCtx, "get me a person", resp); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResponseMetadataCarriesChannel(t *testing.T) {
	md := responseMetadata(
		&Context{Channel: ChannelMessenger},
		&Response{Intent: IntentGreeting, Confidence: 0.95, Metadata: map[string]string{"products": "2"}},
	)
	if md["channel"] != "messenger" {
		t.Fatalf("channel = %q, want messenger", md["channel"])
	}
	if md["intent"] != string(IntentGreeting) {
		t.Fatalf("intent = %q", md["intent"])
	}
	if md["products"] != "2" {
		t.Fatalf("handler metadata lost: %v", md)
	}
}

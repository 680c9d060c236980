package merchants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the pool surface the store needs; pgxmock satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Merchant is a tenant's full configuration.
type Merchant struct {
	ID          string
	Name        string
	Personality string // friendly | professional | enthusiastic

	// LLM configuration
	LLMProvider string
	LLMModel    string
	LLMAPIKey   string // decrypted before the struct leaves the store

	// Storefront link
	ShopDomain      string
	ShopAccessToken string
	StoreConnected  bool

	// Channel credentials
	MessengerPageID    string
	MessengerPageToken string

	// Where handoff alerts go.
	NotifyEmail string

	AllowedWidgetDomains []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store reads merchant configuration from Postgres. Credentials are sealed
// with AES-GCM at rest and unsealed on read.
type Store struct {
	pool   PgxPool
	sealer *Sealer
}

// NewStore creates a merchant store. sealer may be nil in tests, in which
// case credential columns are treated as plaintext.
func NewStore(pool PgxPool, sealer *Sealer) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool, sealer: sealer}
}

const merchantColumns = `id, name, personality, llm_provider, llm_model, llm_api_key,
	shop_domain, shop_access_token, messenger_page_id, messenger_page_token,
	notify_email, allowed_widget_domains, created_at, updated_at`

// Get returns the merchant configuration, or (nil, nil) when the merchant
// does not exist. Absence is a first-class case, not an error.
func (s *Store) Get(ctx context.Context, merchantID string) (*Merchant, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, merchantID)

	m, err := s.scanMerchant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merchants: failed to load %s: %w", merchantID, err)
	}
	return m, nil
}

// GetByMessengerPage resolves the merchant owning a Facebook page, used by
// the Messenger webhook to route inbound events.
func (s *Store) GetByMessengerPage(ctx context.Context, pageID string) (*Merchant, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, nil
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE messenger_page_id = $1`, pageID)

	m, err := s.scanMerchant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merchants: failed to resolve page %s: %w", pageID, err)
	}
	return m, nil
}

func (s *Store) scanMerchant(row pgx.Row) (*Merchant, error) {
	var m Merchant
	var apiKey, shopToken, pageToken []byte
	var domains []string

	err := row.Scan(
		&m.ID, &m.Name, &m.Personality, &m.LLMProvider, &m.LLMModel, &apiKey,
		&m.ShopDomain, &shopToken, &m.MessengerPageID, &pageToken,
		&m.NotifyEmail, &domains, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.LLMAPIKey, err = s.unseal(apiKey); err != nil {
		return nil, fmt.Errorf("unseal llm key: %w", err)
	}
	if m.ShopAccessToken, err = s.unseal(shopToken); err != nil {
		return nil, fmt.Errorf("unseal shop token: %w", err)
	}
	if m.MessengerPageToken, err = s.unseal(pageToken); err != nil {
		return nil, fmt.Errorf("unseal page token: %w", err)
	}

	m.AllowedWidgetDomains = domains
	m.StoreConnected = m.ShopDomain != "" && m.ShopAccessToken != ""
	if m.Personality == "" {
		m.Personality = "friendly"
	}
	return &m, nil
}

func (s *Store) unseal(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	if s.sealer == nil {
		return string(sealed), nil
	}
	return s.sealer.Open(sealed)
}

// UpdateLLMConfig stores a merchant's provider settings, sealing the key.
func (s *Store) UpdateLLMConfig(ctx context.Context, merchantID, provider, model, apiKey string) error {
	sealed, err := s.seal(apiKey)
	if err != nil {
		return fmt.Errorf("merchants: seal llm key: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE merchants SET llm_provider = $1, llm_model = $2, llm_api_key = $3, updated_at = now()
		WHERE id = $4
	`, provider, model, sealed, merchantID)
	if err != nil {
		return fmt.Errorf("merchants: update llm config: %w", err)
	}
	return nil
}

func (s *Store) seal(plain string) ([]byte, error) {
	if plain == "" {
		return nil, nil
	}
	if s.sealer == nil {
		return []byte(plain), nil
	}
	return s.sealer.Seal(plain)
}

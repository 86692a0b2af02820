package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailflow/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(conn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), conn)
	if err != nil {
		return nil, err
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// Incr is the shared counter behind the hourly rate limiter: one upsert,
// increment-and-read in a single statement.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO rate_buckets (bucket_key, count)
		 VALUES ($1, 1)
		 ON CONFLICT (bucket_key)
		 DO UPDATE SET count = rate_buckets.count + 1
		 RETURNING count`,
		key,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment bucket %s: %w", key, err)
	}
	return count, nil
}

func (s *Store) QuotaSnapshot(ctx context.Context) (models.ProviderQuotaSnapshot, error) {
	var snap models.ProviderQuotaSnapshot
	err := s.Pool.QueryRow(ctx,
		`SELECT emails_available, emails_limit, last_synced_at, COALESCE(sync_error, '')
		 FROM provider_quota
		 WHERE id = 1`,
	).Scan(&snap.EmailsAvailable, &snap.EmailsLimit, &snap.LastSyncedAt, &snap.SyncError)
	if err != nil {
		return snap, fmt.Errorf("read quota snapshot: %w", err)
	}
	return snap, nil
}

// UpsertQuotaSnapshot is called by the external provider sync job, never by
// the orchestrator.
func (s *Store) UpsertQuotaSnapshot(ctx context.Context, snap models.ProviderQuotaSnapshot) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO provider_quota (id, emails_available, emails_limit, last_synced_at, sync_error)
		 VALUES (1, $1, $2, $3, NULLIF($4, ''))
		 ON CONFLICT (id)
		 DO UPDATE SET emails_available = $1,
		               emails_limit     = $2,
		               last_synced_at   = $3,
		               sync_error       = NULLIF($4, '')`,
		snap.EmailsAvailable,
		snap.EmailsLimit,
		snap.LastSyncedAt,
		snap.SyncError,
	)
	return err
}

// EnsureAccountLimits seeds the account_limits singleton with the configured
// daily limit. An existing row wins so operator overrides survive restarts.
func (s *Store) EnsureAccountLimits(ctx context.Context, dailyLimit int) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO account_limits (id, daily_send_limit)
		 VALUES (1, $1)
		 ON CONFLICT (id) DO NOTHING`,
		dailyLimit,
	)
	if err != nil {
		return fmt.Errorf("seed account limits: %w", err)
	}
	return nil
}

func (s *Store) AccountLimits(ctx context.Context) (models.AccountLimits, error) {
	var limits models.AccountLimits
	err := s.Pool.QueryRow(ctx,
		`SELECT daily_send_limit, transport_credentials
		 FROM account_limits
		 WHERE id = 1`,
	).Scan(&limits.DailySendLimit, &limits.TransportCredentials)
	if err != nil {
		return limits, fmt.Errorf("read account limits: %w", err)
	}
	return limits, nil
}

// LedgerCountAfter counts all ledger appends after t, regardless of owner.
// Used to compensate the provider quota for sync lag.
func (s *Store) LedgerCountAfter(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM send_ledger WHERE created_at > $1`,
		t,
	).Scan(&count)
	return count, err
}

// SendsSince counts ledger appends for one owner's campaigns since the
// given boundary (local business midnight for the daily limit).
func (s *Store) SendsSince(ctx context.Context, ownerID int64, since time.Time) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM send_ledger l
		 JOIN campaigns c ON c.id = l.campaign_id
		 WHERE c.owner_id = $1
		   AND l.created_at >= $2`,
		ownerID,
		since,
	).Scan(&count)
	return count, err
}

func (s *Store) AppendLedger(ctx context.Context, campaignID, recipientID int64, outcome models.SendOutcome) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO send_ledger (campaign_id, recipient_id, outcome, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		campaignID,
		recipientID,
		outcome,
	)
	return err
}

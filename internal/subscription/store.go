package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages subscription and binding code persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests to age binding codes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open initializes or connects to the bridge database and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	// Transactions begin immediate so a writer takes its lock up front and
	// queues on busy_timeout, instead of failing a deferred read-to-write
	// upgrade when the other adapter process holds the database.
	db, err := sql.Open("sqlite", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection per process additionally serializes local writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create persists a new subscription. It fails with ErrConflict when either
// the channel or the group already has an active binding.
func (s *Store) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if sub == nil {
		return nil, errors.New("subscription is nil")
	}
	if strings.TrimSpace(sub.ChannelID) == "" || strings.TrimSpace(sub.GroupID) == "" {
		return nil, errors.New("subscription requires channel and group ids")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created, err := s.insertSubscription(ctx, tx, sub)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create: %w", err)
	}
	return created, nil
}

// insertSubscription performs the conflict check and insert inside an open
// transaction so redemption can share it with the code delete.
func (s *Store) insertSubscription(ctx context.Context, tx *sql.Tx, sub *Subscription) (*Subscription, error) {
	var bound int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM subscriptions WHERE channel_id = ? OR group_id = ?`,
		sub.ChannelID, sub.GroupID,
	).Scan(&bound)
	if err != nil {
		return nil, fmt.Errorf("check existing binding: %w", err)
	}
	if bound > 0 {
		return nil, fmt.Errorf("channel %s or group %s: %w", sub.ChannelID, sub.GroupID, ErrConflict)
	}

	createdAt := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions (
            channel_id, channel_name, webhook_url,
            group_id, group_name, notify_token,
            media_folder, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ChannelID,
		sub.ChannelName,
		sub.WebhookURL,
		sub.GroupID,
		sub.GroupName,
		sub.NotifyToken,
		"",
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("channel %s or group %s: %w", sub.ChannelID, sub.GroupID, ErrConflict)
		}
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	number, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	folder := fmt.Sprintf("sub_%d", number)
	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET media_folder = ? WHERE number = ?`, folder, number,
	); err != nil {
		return nil, fmt.Errorf("assign media folder: %w", err)
	}

	out := *sub
	out.Number = number
	out.MediaFolder = folder
	out.CreatedAt = createdAt
	return &out, nil
}

// GetByChannel fetches the subscription bound to a Discord channel, or nil
// when the channel is not bound.
func (s *Store) GetByChannel(ctx context.Context, channelID string) (*Subscription, error) {
	return s.getWhere(ctx, "channel_id = ?", channelID)
}

// GetByGroup fetches the subscription bound to a LINE group, or nil when the
// group is not bound.
func (s *Store) GetByGroup(ctx context.Context, groupID string) (*Subscription, error) {
	return s.getWhere(ctx, "group_id = ?", groupID)
}

// GetByNumber fetches a subscription by its sequence number, or nil when
// absent.
func (s *Store) GetByNumber(ctx context.Context, number int64) (*Subscription, error) {
	return s.getWhere(ctx, "number = ?", number)
}

func (s *Store) getWhere(ctx context.Context, clause string, arg any) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE `+clause, arg)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// Delete removes a subscription by number. Deleting an absent subscription is
// a no-op so unbind retries stay safe.
func (s *Store) Delete(ctx context.Context, number int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE number = ?`, number); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// List returns all subscriptions ordered by number.
func (s *Store) List(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ChannelIDs returns the set of bound Discord channel ids. Adapters cache the
// result so the per-message hot path never touches the database.
func (s *Store) ChannelIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.idSet(ctx, "channel_id")
}

// GroupIDs returns the set of bound LINE group ids.
func (s *Store) GroupIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.idSet(ctx, "group_id")
}

func (s *Store) idSet(ctx context.Context, column string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+` FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", column, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

const subscriptionColumns = "number, channel_id, channel_name, webhook_url, group_id, group_name, notify_token, media_folder, created_at"

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*Subscription, error) {
	var (
		sub        Subscription
		createdRaw string
	)
	if err := scanner.Scan(
		&sub.Number,
		&sub.ChannelID,
		&sub.ChannelName,
		&sub.WebhookURL,
		&sub.GroupID,
		&sub.GroupName,
		&sub.NotifyToken,
		&sub.MediaFolder,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		sub.CreatedAt = created
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

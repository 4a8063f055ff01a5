package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IssueCode creates a binding code capturing the LINE side of a pairing. It
// fails with ErrConflict when the group already has an active subscription.
func (s *Store) IssueCode(ctx context.Context, groupID, groupName, notifyToken string) (*BindingCode, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, errors.New("group id must not be empty")
	}

	existing, err := s.GetByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, ErrConflict)
	}

	code := &BindingCode{
		Code:        uuid.NewString(),
		GroupID:     groupID,
		GroupName:   groupName,
		NotifyToken: notifyToken,
		IssuedAt:    s.now().UTC(),
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO binding_codes (code, group_id, group_name, notify_token, issued_at)
         VALUES (?, ?, ?, ?, ?)`,
		code.Code,
		code.GroupID,
		code.GroupName,
		code.NotifyToken,
		code.IssuedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert binding code: %w", err)
	}

	return code, nil
}

// GetCode fetches a binding code, or nil when absent.
func (s *Store) GetCode(ctx context.Context, code string) (*BindingCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, group_id, group_name, notify_token, issued_at FROM binding_codes WHERE code = ?`, code)
	bc, err := scanCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get binding code: %w", err)
	}
	return bc, nil
}

// RedeemCode atomically consumes a binding code and creates the subscription
// it authorizes. The delete's rows-affected guard makes concurrent
// redemptions of the same code yield exactly one winner; the loser observes
// ErrNotFound. Expired codes are deleted as a side effect and reported with
// ErrExpired.
func (s *Store) RedeemCode(ctx context.Context, code, channelID, channelName, webhookURL string) (*Subscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT code, group_id, group_name, notify_token, issued_at FROM binding_codes WHERE code = ?`, code)
	bc, err := scanCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("code %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get binding code: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM binding_codes WHERE code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("consume binding code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// A concurrent redemption won the race between our read and delete.
		return nil, fmt.Errorf("code %q: %w", code, ErrNotFound)
	}

	if !s.now().Before(bc.ExpiresAt()) {
		// Keep the delete: expired codes are removed on the failed attempt.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit expiry delete: %w", err)
		}
		return nil, fmt.Errorf("code %q issued %s: %w", code, bc.IssuedAt.Format(time.RFC3339), ErrExpired)
	}

	sub, err := s.insertSubscription(ctx, tx, &Subscription{
		ChannelID:   channelID,
		ChannelName: channelName,
		WebhookURL:  webhookURL,
		GroupID:     bc.GroupID,
		GroupName:   bc.GroupName,
		NotifyToken: bc.NotifyToken,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}
	return sub, nil
}

// RevokeCode deletes a binding code if present. Revoking an unknown code is a
// no-op.
func (s *Store) RevokeCode(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM binding_codes WHERE code = ?`, code); err != nil {
		return fmt.Errorf("revoke binding code: %w", err)
	}
	return nil
}

func scanCode(scanner interface{ Scan(dest ...any) error }) (*BindingCode, error) {
	var (
		bc        BindingCode
		issuedRaw string
	)
	if err := scanner.Scan(&bc.Code, &bc.GroupID, &bc.GroupName, &bc.NotifyToken, &issuedRaw); err != nil {
		return nil, err
	}
	if issued, err := time.Parse(time.RFC3339Nano, issuedRaw); err == nil {
		bc.IssuedAt = issued
	}
	return &bc, nil
}

package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"linebridge/internal/subscription"
	"linebridge/internal/testsupport"
)

func TestIssueAndRedeemCode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	code, err := store.IssueCode(ctx, "G1", "Team", "notify-G1")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}
	if code.Code == "" {
		t.Fatal("expected a non-empty code")
	}
	if code.ExpiresAt().Sub(code.IssuedAt) != subscription.CodeTTL {
		t.Fatalf("unexpected expiry window: %s", code.ExpiresAt().Sub(code.IssuedAt))
	}

	fetched, err := store.GetCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("GetCode failed: %v", err)
	}
	if fetched == nil || fetched.GroupID != "G1" {
		t.Fatalf("unexpected stored code: %#v", fetched)
	}

	sub, err := store.RedeemCode(ctx, code.Code, "C1", "general", "https://discord.example/webhook/C1")
	if err != nil {
		t.Fatalf("RedeemCode failed: %v", err)
	}
	if sub.Number == 0 {
		t.Fatal("expected subscription number to be assigned")
	}
	if sub.GroupID != "G1" || sub.GroupName != "Team" || sub.NotifyToken != "notify-G1" {
		t.Fatalf("group side not carried into subscription: %#v", sub)
	}
	if sub.ChannelID != "C1" || sub.ChannelName != "general" {
		t.Fatalf("channel side not recorded: %#v", sub)
	}

	consumed, err := store.GetCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("GetCode after redeem failed: %v", err)
	}
	if consumed != nil {
		t.Fatalf("expected code to be consumed, got %#v", consumed)
	}
}

func TestIssueCodeRejectsBoundGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.Create(ctx, newSubscription("C1", "G1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.IssueCode(ctx, "G1", "Team", ""); !errors.Is(err, subscription.ErrConflict) {
		t.Fatalf("expected ErrConflict for bound group, got %v", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.RedeemCode(context.Background(), "no-such-code", "C1", "general", "")
	if !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedeemExpiredCode(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	now := time.Now()
	store := testsupport.MustOpenStore(t, cfg, subscription.WithClock(func() time.Time {
		return now
	}))

	ctx := context.Background()
	code, err := store.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	now = now.Add(subscription.CodeTTL + time.Second)

	_, err = store.RedeemCode(ctx, code.Code, "C1", "general", "")
	if !errors.Is(err, subscription.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	// The failed attempt removes the expired code.
	stale, err := store.GetCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("GetCode failed: %v", err)
	}
	if stale != nil {
		t.Fatalf("expected expired code to be deleted, got %#v", stale)
	}

	// A retry after re-issuing still works for the same group.
	fresh, err := store.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}
	if _, err := store.RedeemCode(ctx, fresh.Code, "C1", "general", ""); err != nil {
		t.Fatalf("redeem of fresh code failed: %v", err)
	}
}

func TestRedeemCodeAtBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	now := time.Now()
	store := testsupport.MustOpenStore(t, cfg, subscription.WithClock(func() time.Time {
		return now
	}))

	ctx := context.Background()
	code, err := store.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	// Exactly at issuedAt+TTL the code is no longer valid.
	now = now.Add(subscription.CodeTTL)
	if _, err := store.RedeemCode(ctx, code.Code, "C1", "general", ""); !errors.Is(err, subscription.ErrExpired) {
		t.Fatalf("expected ErrExpired at boundary, got %v", err)
	}
}

func TestConcurrentRedeemSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	code, err := store.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	const racers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.RedeemCode(ctx, code.Code, "C1", "general", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winning redemption, got %d", winners)
	}
	for _, err := range failures {
		if !errors.Is(err, subscription.ErrNotFound) {
			t.Fatalf("loser should observe ErrNotFound, got %v", err)
		}
	}

	sub, err := store.GetByGroup(ctx, "G1")
	if err != nil {
		t.Fatalf("GetByGroup failed: %v", err)
	}
	if sub == nil {
		t.Fatal("expected the winning redemption to create a subscription")
	}
}

func TestConcurrentRedeemAcrossStores(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	// Two store handles on the same database file stand in for the two
	// adapter processes sharing it.
	storeA := testsupport.MustOpenStore(t, cfg)
	storeB := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	code, err := storeA.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		failures []error
	)
	for _, store := range []*subscription.Store{storeA, storeB, storeA, storeB} {
		wg.Add(1)
		go func(s *subscription.Store) {
			defer wg.Done()
			_, err := s.RedeemCode(ctx, code.Code, "C1", "general", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else {
				failures = append(failures, err)
			}
		}(store)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winning redemption, got %d", winners)
	}
	for _, err := range failures {
		if !errors.Is(err, subscription.ErrNotFound) {
			t.Fatalf("loser should observe ErrNotFound, got %v", err)
		}
	}
}

func TestRevokeCodeIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	code, err := store.IssueCode(ctx, "G1", "Team", "")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}

	if err := store.RevokeCode(ctx, code.Code); err != nil {
		t.Fatalf("RevokeCode failed: %v", err)
	}
	if err := store.RevokeCode(ctx, code.Code); err != nil {
		t.Fatalf("repeated RevokeCode should be a no-op, got %v", err)
	}
	if err := store.RevokeCode(ctx, "never-issued"); err != nil {
		t.Fatalf("revoking unknown code should be a no-op, got %v", err)
	}

	if _, err := store.RedeemCode(ctx, code.Code, "C1", "general", ""); !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("expected revoked code to be unknown, got %v", err)
	}
}

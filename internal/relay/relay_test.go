package relay_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"linebridge/internal/relay"
)

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "relay.sock")
}

func TestEnvelopeValidation(t *testing.T) {
	cases := []struct {
		name    string
		env     relay.Envelope
		wantErr bool
	}{
		{"valid text", relay.Envelope{Type: relay.TypeText, Subscription: 1, Text: "hi"}, false},
		{"text without body", relay.Envelope{Type: relay.TypeText, Subscription: 1}, true},
		{"valid image", relay.Envelope{Type: relay.TypeImage, Subscription: 1, ImageURL: "https://cdn/x.jpg"}, false},
		{"image without url", relay.Envelope{Type: relay.TypeImage, Subscription: 1}, true},
		{"valid video", relay.Envelope{Type: relay.TypeVideo, Subscription: 1, VideoURL: "https://cdn/x.mp4", ThumbnailURL: "https://cdn/x.jpg"}, false},
		{"video without thumbnail", relay.Envelope{Type: relay.TypeVideo, Subscription: 1, VideoURL: "https://cdn/x.mp4"}, true},
		{"valid audio", relay.Envelope{Type: relay.TypeAudio, Subscription: 1, AudioURL: "https://cdn/x.m4a", DurationMs: 1200}, false},
		{"audio without duration", relay.Envelope{Type: relay.TypeAudio, Subscription: 1, AudioURL: "https://cdn/x.m4a"}, true},
		{"missing subscription", relay.Envelope{Type: relay.TypeText, Text: "hi"}, true},
		{"unknown type", relay.Envelope{Type: "sticker", Subscription: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestRoundTripAllTypes(t *testing.T) {
	path := socketPath(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []relay.Envelope
	)
	done := make(chan struct{}, 16)
	server, err := relay.NewServer(ctx, path, 8, func(_ context.Context, env relay.Envelope) error {
		mu.Lock()
		received = append(received, env)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.Serve()
	defer server.Close()

	sent := []relay.Envelope{
		{ID: "e1", Type: relay.TypeText, Subscription: 7, Author: "alice", Text: "hello"},
		{ID: "e2", Type: relay.TypeImage, Subscription: 7, Author: "alice", ImageURL: "https://cdn/x.jpg"},
		{ID: "e3", Type: relay.TypeVideo, Subscription: 7, Author: "bob", Text: "clip", VideoURL: "https://cdn/x.mp4", ThumbnailURL: "https://cdn/x_thumb.jpg"},
		{ID: "e4", Type: relay.TypeAudio, Subscription: 7, Author: "bob", AudioURL: "https://cdn/x.m4a", DurationMs: 12500},
	}

	pub := relay.NewPublisher(path, 5*time.Second, nil)
	for _, env := range sent {
		if err := pub.Publish(ctx, env); err != nil {
			t.Fatalf("Publish %s failed: %v", env.ID, err)
		}
	}

	for range sent {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for consumer")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != len(sent) {
		t.Fatalf("expected %d envelopes, got %d", len(sent), len(received))
	}
	for i, env := range sent {
		if received[i] != env {
			t.Fatalf("envelope %d not lossless:\nsent %#v\ngot  %#v", i, env, received[i])
		}
	}
}

func TestConsumerPreservesPublishOrder(t *testing.T) {
	path := socketPath(t)
	ctx := context.Background()

	const count = 20
	var (
		mu       sync.Mutex
		received []string
	)
	done := make(chan struct{}, count)
	server, err := relay.NewServer(ctx, path, count, func(_ context.Context, env relay.Envelope) error {
		mu.Lock()
		received = append(received, env.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.Serve()
	defer server.Close()

	pub := relay.NewPublisher(path, 5*time.Second, nil)
	for i := 0; i < count; i++ {
		env := relay.Envelope{
			ID:           fmt.Sprintf("e%02d", i),
			Type:         relay.TypeText,
			Subscription: 1,
			Text:         "ordered",
		}
		if err := pub.Publish(ctx, env); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	for i := 0; i < count; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for consumer")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, id := range received {
		if want := fmt.Sprintf("e%02d", i); id != want {
			t.Fatalf("order broken at %d: got %s want %s", i, id, want)
		}
	}
}

func TestQueueFullIsNack(t *testing.T) {
	path := socketPath(t)
	ctx := context.Background()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	server, err := relay.NewServer(ctx, path, 1, func(_ context.Context, env relay.Envelope) error {
		entered <- struct{}{}
		<-release
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.Serve()
	defer func() {
		close(release)
		server.Close()
	}()

	pub := relay.NewPublisher(path, 5*time.Second, nil)
	env := relay.Envelope{Type: relay.TypeText, Subscription: 1, Text: "x"}

	// First envelope moves into the blocked handler.
	if err := pub.Publish(ctx, env); err != nil {
		t.Fatalf("first Publish failed: %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never entered")
	}

	// Second fills the queue slot.
	if err := pub.Publish(ctx, env); err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}

	// Third is nacked.
	if err := pub.Publish(ctx, env); !errors.Is(err, relay.ErrTransport) {
		t.Fatalf("expected ErrTransport on full queue, got %v", err)
	}
}

func TestCloseDeliversAckedEnvelopes(t *testing.T) {
	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const count = 5
	var (
		mu      sync.Mutex
		handled []string
		ctxErrs []error
	)
	gate := make(chan struct{})
	server, err := relay.NewServer(ctx, path, count+1, func(hctx context.Context, env relay.Envelope) error {
		<-gate
		mu.Lock()
		handled = append(handled, env.ID)
		ctxErrs = append(ctxErrs, hctx.Err())
		mu.Unlock()
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	server.Serve()

	pub := relay.NewPublisher(path, 5*time.Second, nil)
	for i := 0; i < count; i++ {
		env := relay.Envelope{
			ID:           fmt.Sprintf("e%d", i),
			Type:         relay.TypeText,
			Subscription: 1,
			Text:         "pending",
		}
		if err := pub.Publish(ctx, env); err != nil {
			t.Fatalf("Publish %d failed: %v", i, err)
		}
	}

	// Shutdown begins with all acked envelopes still queued.
	cancel()
	close(gate)
	server.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(handled) != count {
		t.Fatalf("expected %d envelopes delivered through Close, got %d", count, len(handled))
	}
	for i, err := range ctxErrs {
		if err != nil {
			t.Fatalf("envelope %s handled with dead context: %v", handled[i], err)
		}
	}
}

func TestPublishUnreachableSocket(t *testing.T) {
	pub := relay.NewPublisher(filepath.Join(t.TempDir(), "missing.sock"), time.Second, nil)
	err := pub.Publish(context.Background(), relay.Envelope{Type: relay.TypeText, Subscription: 1, Text: "x"})
	if !errors.Is(err, relay.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestPublishRejectsInvalidEnvelopeLocally(t *testing.T) {
	pub := relay.NewPublisher(filepath.Join(t.TempDir(), "missing.sock"), time.Second, nil)
	err := pub.Publish(context.Background(), relay.Envelope{Type: "sticker", Subscription: 1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if errors.Is(err, relay.ErrTransport) {
		t.Fatalf("validation failures must not wrap ErrTransport: %v", err)
	}
}

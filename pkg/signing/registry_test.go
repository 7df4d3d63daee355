// Copyright 2025 Hyli
//
// Signing registry tests.

package signing

import (
	"testing"
	"time"
)

func TestRegisterAndSubmit(t *testing.T) {
	r := NewRegistry(0)
	defer r.Stop()

	ch := make(chan OutMessage, responseBuffer)
	r.Register("req-1", "deadbeef", "Sign in", "https://wallet.example", ch)
	if r.PendingCount() != 1 {
		t.Fatalf("expected 1 pending request, got %d", r.PendingCount())
	}

	if err := r.Submit("req-1", "sig-hex", "pub-hex"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case msg := <-ch:
		if msg.Type != MsgSigningResponse || msg.Signature != "sig-hex" || msg.PublicKey != "pub-hex" {
			t.Errorf("unexpected response: %+v", msg)
		}
	default:
		t.Fatal("response should be routed to the registering channel")
	}
	if r.PendingCount() != 0 {
		t.Errorf("request should be consumed, %d pending", r.PendingCount())
	}

	// A second submit must fail: the request is gone.
	if err := r.Submit("req-1", "sig-hex", "pub-hex"); err == nil {
		t.Error("submitting a consumed request should fail")
	}
}

func TestCancel(t *testing.T) {
	r := NewRegistry(0)
	defer r.Stop()

	ch := make(chan OutMessage, responseBuffer)
	r.Register("req-1", "deadbeef", "Sign in", "https://wallet.example", ch)
	r.Cancel("req-1")
	if err := r.Submit("req-1", "sig", "pub"); err == nil {
		t.Error("submitting a cancelled request should fail")
	}
}

func TestExpirySweep(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	defer r.Stop()

	ch := make(chan OutMessage, responseBuffer)
	r.Register("req-1", "deadbeef", "Sign in", "https://wallet.example", ch)

	time.Sleep(20 * time.Millisecond)
	r.sweepExpired()

	if r.PendingCount() != 0 {
		t.Fatalf("expired request should be swept, %d pending", r.PendingCount())
	}
	select {
	case msg := <-ch:
		if msg.Type != MsgSigningError {
			t.Errorf("expected timeout error, got %+v", msg)
		}
	default:
		t.Error("timeout notification should be sent")
	}
}

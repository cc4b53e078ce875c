package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesTokens(t *testing.T) {
	l := New(time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("key-a", 3) {
			t.Fatalf("request %d denied under the limit", i+1)
		}
	}
	if l.Allow("key-a", 3) {
		t.Fatal("request over the limit allowed")
	}
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(time.Minute)
	if !l.Allow("key-a", 1) {
		t.Fatal("first request for key-a denied")
	}
	if !l.Allow("key-b", 1) {
		t.Fatal("key-b affected by key-a's bucket")
	}
}

func TestReset(t *testing.T) {
	l := New(time.Minute)
	if !l.Allow("key-a", 1) {
		t.Fatal("first request denied")
	}
	if l.Allow("key-a", 1) {
		t.Fatal("second request allowed before reset")
	}
	l.Reset("key-a")
	if !l.Allow("key-a", 1) {
		t.Fatal("request denied after reset")
	}
}

func TestTokensRefill(t *testing.T) {
	// 600 tokens per minute refills ten per second; a short sleep is enough
	// to earn one back.
	l := New(time.Minute)
	for i := 0; i < 600; i++ {
		if !l.Allow("key-a", 600) {
			t.Fatalf("request %d denied under the limit", i+1)
		}
	}
	if l.Allow("key-a", 600) {
		t.Fatal("bucket not empty after spending every token")
	}
	time.Sleep(150 * time.Millisecond)
	if !l.Allow("key-a", 600) {
		t.Fatal("bucket did not refill")
	}
}

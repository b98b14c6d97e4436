package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPIgnoresHeadersFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:5123"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")

	if got := ClientIP(req, nil); got != "203.0.113.7" {
		t.Fatalf("expected peer address, got %q", got)
	}
}

func TestClientIPWalksForwardedChainFromTrustedProxy(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.0.2.10"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 203.0.113.5, 192.0.2.10")

	if got := ClientIP(req, trusted); got != "203.0.113.5" {
		t.Fatalf("expected rightmost untrusted hop, got %q", got)
	}
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("trusted proxies: %v", err)
	}
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Real-IP", "198.51.100.4")

	if got := ClientIP(req, trusted); got != "198.51.100.4" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
}

func TestNewTrustedProxiesRejectsGarbage(t *testing.T) {
	if _, err := NewTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatalf("expected invalid entry to fail")
	}
	if set, err := NewTrustedProxies([]string{" ", ""}); err != nil || set != nil {
		t.Fatalf("expected empty input to trust nothing, set=%v err=%v", set, err)
	}
}

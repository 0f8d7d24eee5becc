package webhook

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/slackmirror/slackmirror/internal/tenant"
)

func testRegistry(t *testing.T) *tenant.Registry {
	t.Helper()
	r, err := tenant.NewRegistry([]config.TenantConfig{
		{ID: "acme", TeamID: "T111", Name: "Acme", SigningSecret: "secret-acme", APIToken: "xoxb-acme"},
		{ID: "globex", TeamID: "T222", Name: "Globex", SigningSecret: "secret-globex", APIToken: "xoxb-globex"},
	}, tenant.WithClientFactory(func(config.TenantConfig) tenant.API { return nil }))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func signedHeader(secret string, ts time.Time, body []byte) http.Header {
	h := http.Header{}
	tsStr := strconv.FormatInt(ts.Unix(), 10)
	h.Set(HeaderTimestamp, tsStr)
	h.Set(HeaderSignature, Sign(secret, tsStr, body))
	return h
}

func TestVerifyValidSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{"type":"event_callback","team_id":"T111"}`)
	if err := v.Verify("T111", body, signedHeader("secret-acme", now, body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyCrossTenantSecretRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{"type":"event_callback","team_id":"T111"}`)
	// Signed with the other tenant's secret.
	err := v.Verify("T111", body, signedHeader("secret-globex", now, body))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("cross-tenant signature: got %v, want ErrBadSignature", err)
	}
}

func TestVerifyTamperedBodyRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{"type":"event_callback","team_id":"T111"}`)
	h := signedHeader("secret-acme", now, body)
	err := v.Verify("T111", []byte(`{"type":"event_callback","team_id":"T111","x":1}`), h)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered body: got %v, want ErrBadSignature", err)
	}
}

func TestVerifyStaleTimestampRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{}`)
	// Valid hash, but signed six minutes in the past.
	err := v.Verify("T111", body, signedHeader("secret-acme", now.Add(-6*time.Minute), body))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("stale timestamp: got %v, want ErrBadSignature", err)
	}
	// Same for a timestamp from the future.
	err = v.Verify("T111", body, signedHeader("secret-acme", now.Add(6*time.Minute), body))
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("future timestamp: got %v, want ErrBadSignature", err)
	}
}

func TestVerifyMissingHeadersRejected(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{}`)

	cases := []struct {
		name string
		h    http.Header
	}{
		{"no headers", http.Header{}},
		{"timestamp only", func() http.Header {
			h := http.Header{}
			h.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
			return h
		}()},
		{"non-numeric timestamp", func() http.Header {
			h := http.Header{}
			h.Set(HeaderTimestamp, "not-a-number")
			h.Set(HeaderSignature, "v0=deadbeef")
			return h
		}()},
	}
	for _, tc := range cases {
		if err := v.Verify("T111", body, tc.h); !errors.Is(err, ErrBadSignature) {
			t.Errorf("%s: got %v, want ErrBadSignature", tc.name, err)
		}
	}
}

func TestVerifyUnknownTeamFailsClosed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(testRegistry(t), 5*time.Minute).WithClock(func() time.Time { return now })
	body := []byte(`{}`)
	err := v.Verify("T999", body, signedHeader("secret-acme", now, body))
	if !errors.Is(err, tenant.ErrUnknownTenant) {
		t.Fatalf("unknown team: got %v, want ErrUnknownTenant", err)
	}
}

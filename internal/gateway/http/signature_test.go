package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uitrace/gateway/internal/gateway/service"
	"github.com/uitrace/gateway/pkg/canonical"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/keypair"
)

type staticKeys map[string][]byte

func (k staticKeys) PublicKey(_ context.Context, extensionID string) ([]byte, error) {
	key, ok := k[extensionID]
	if !ok {
		return nil, service.ErrUnknownExtension
	}
	return key, nil
}

// signedRequest builds a request carrying a valid detached signature
// for the given body and timestamp.
func signedRequest(t *testing.T, priv []byte, extensionID string, ts time.Time, body []byte) *http.Request {
	t.Helper()

	timestamp := strconv.FormatInt(ts.UnixMilli(), 10)
	signed, err := canonical.SignedString(extensionID, timestamp, body)
	require.NoError(t, err)

	sig, err := keypair.Sign([]byte(signed), priv)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewReader(body))
	req.Header.Set(HeaderExtensionID, extensionID)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, sig)
	return req
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp.Status)
	return resp.Message
}

func TestSignatureGuardAcceptsValidSignature(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)

	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})

	var sawBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	body := []byte(`{"extensionId":"ext-1"}`)
	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, body, sawBody, "handler must see the original body")
}

func TestSignatureGuardAcceptsReplayWithinWindow(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)

	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// The guard keeps no nonce state: the identical signed tuple passes
	// again as long as the timestamp is still inside the window.
	body := []byte(`{"extensionId":"ext-1"}`)
	first := signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), body)

	replay := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewReader(body))
	replay.Header = first.Header.Clone()

	for _, req := range []*http.Request{first, replay} {
		rec := httptest.NewRecorder()
		guard(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSignatureGuardToleratesKeyOrderDifferences(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)

	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Sign one key ordering, send another. Canonicalization makes both
	// produce the same signed string.
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signed, err := canonical.SignedString("ext-1", timestamp, []byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	sig, err := keypair.Sign([]byte(signed), kp.PrivateKey)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewReader([]byte(`{"b":2,"a":1}`)))
	req.Header.Set(HeaderExtensionID, "ext-1")
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, sig)

	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSignatureGuardRejectsMissingHeaders(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	for _, drop := range []string{HeaderExtensionID, HeaderTimestamp, HeaderSignature} {
		t.Run(drop, func(t *testing.T) {
			req := signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), []byte(`{}`))
			req.Header.Del(drop)

			rec := httptest.NewRecorder()
			guard(next).ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Missing required headers", errorMessage(t, rec))
		})
	}
}

func TestSignatureGuardRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	guard := SignatureGuard(staticKeys{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), []byte(`{}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Missing required headers", errorMessage(t, rec))
}

func TestSignatureGuardRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	cases := map[string]time.Time{
		"six minutes ago":       time.Now().Add(-6 * time.Minute),
		"six minutes in future": time.Now().Add(6 * time.Minute),
	}
	for name, ts := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			guard(next).ServeHTTP(rec, signedRequest(t, kp.PrivateKey, "ext-1", ts, []byte(`{}`)))

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Request expired", errorMessage(t, rec))
		})
	}
}

func TestSignatureGuardAcceptsSmallClockSkew(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Four minutes inside the five-minute window, either direction.
	for name, ts := range map[string]time.Time{
		"behind": time.Now().Add(-4 * time.Minute),
		"ahead":  time.Now().Add(4 * time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			guard(next).ServeHTTP(rec, signedRequest(t, kp.PrivateKey, "ext-1", ts, []byte(`{}`)))
			require.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestSignatureGuardRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	guard := SignatureGuard(staticKeys{"ext-1": kp.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	req := signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), []byte(`{"amount":10}`))
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":9999}`)))

	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid signature", errorMessage(t, rec))
}

func TestSignatureGuardRejectsWrongKey(t *testing.T) {
	t.Parallel()

	kp, err := keypair.Generate()
	require.NoError(t, err)
	other, err := keypair.Generate()
	require.NoError(t, err)

	// Registry holds a different key than the one that signed.
	guard := SignatureGuard(staticKeys{"ext-1": other.PublicKey})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, signedRequest(t, kp.PrivateKey, "ext-1", time.Now(), []byte(`{}`)))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid signature", errorMessage(t, rec))
}

func TestSignatureBypassPassesEverything(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", nil)
	rec := httptest.NewRecorder()
	SignatureBypass()(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/uitrace/gateway/internal/gateway/metrics"
	"github.com/uitrace/gateway/pkg/canonical"
	"github.com/uitrace/gateway/pkg/httpx"
	"github.com/uitrace/gateway/pkg/keypair"
	"github.com/uitrace/gateway/pkg/slogx"
)

// Headers carrying the detached request signature.
const (
	HeaderExtensionID = "X-Extension-ID"
	HeaderTimestamp   = "X-Timestamp"
	HeaderSignature   = "X-Signature"
)

// FreshnessWindow bounds how far a signed request's timestamp may drift
// from server time, in either direction. There is no nonce cache, so a
// captured request stays replayable until the window closes.
const FreshnessWindow = 5 * time.Minute

// KeyResolver resolves the registered public key for an extension id.
type KeyResolver interface {
	PublicKey(ctx context.Context, extensionID string) ([]byte, error)
}

// maxSignedBodyBytes caps how much request body the guard will read.
const maxSignedBodyBytes = 1 << 20

// SignatureGuard authenticates inbound requests by reconstructing the
// canonical signed string from headers and body and verifying the RSA
// signature against the extension's registered public key.
//
// RSA verification is CPU-bound, so a bounded gate keeps a burst of
// signed requests from starving the event-delivery path of cores.
func SignatureGuard(keys KeyResolver) httpx.Middleware {
	gate := make(chan struct{}, runtime.GOMAXPROCS(0))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			extensionID := r.Header.Get(HeaderExtensionID)
			timestamp := r.Header.Get(HeaderTimestamp)
			signature := r.Header.Get(HeaderSignature)
			if extensionID == "" || timestamp == "" || signature == "" {
				rejectSigned(w, "missing_headers", "Missing required headers")
				return
			}

			publicKey, err := keys.PublicKey(ctx, extensionID)
			if err != nil {
				// Unknown extension reads the same as a missing key to
				// the caller; the distinction stays in the logs.
				log.Warn("signature guard: no public key", "extension_id", extensionID, "err", err)
				rejectSigned(w, "missing_headers", "Missing required headers")
				return
			}

			ts, err := strconv.ParseInt(timestamp, 10, 64)
			if err != nil {
				rejectSigned(w, "expired", "Request expired")
				return
			}
			if driftMillis(ts) > FreshnessWindow.Milliseconds() {
				rejectSigned(w, "expired", "Request expired")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
			if err != nil {
				rejectSigned(w, "invalid_signature", "Invalid signature")
				return
			}
			// Hand the body back for the actual handler.
			r.Body = io.NopCloser(bytes.NewReader(body))

			signed, err := canonical.SignedString(extensionID, timestamp, body)
			if err != nil {
				// A body that doesn't parse as JSON can't match what
				// the client canonicalized and signed.
				rejectSigned(w, "invalid_signature", "Invalid signature")
				return
			}

			gate <- struct{}{}
			ok, err := keypair.Verify([]byte(signed), signature, publicKey)
			<-gate

			if err != nil {
				log.Warn("signature guard: verification error", "extension_id", extensionID, "err", err)
			}
			if !ok {
				rejectSigned(w, "invalid_signature", "Invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SignatureBypass is the explicit AllowAll policy variant for trusted
// local development. It is only ever selected by configuration in dev
// environments and never participates in the real verification path.
func SignatureBypass() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// driftMillis returns |now - ts| for an epoch-millisecond timestamp.
// The arithmetic stays in millis so absurd timestamps can't overflow a
// Duration into looking fresh.
func driftMillis(ts int64) int64 {
	d := time.Now().UnixMilli() - ts
	if d < 0 {
		d = -d
	}
	return d
}

func rejectSigned(w http.ResponseWriter, reason, message string) {
	metrics.RecordSignatureRejection(reason)
	httpx.WriteError(w, http.StatusUnauthorized, message)
}

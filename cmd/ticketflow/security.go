package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// SignatureHeader carries "sha256=<hex hmac of the body>".
const SignatureHeader = "X-Webhook-Signature"

// verifySignature reads the body and checks its HMAC against the
// signature header. Without a secret every body is accepted, except in
// production.
func verifySignature(r *http.Request, secretKey string, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, errBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secretKey == "" {
		if os.Getenv("TICKETFLOW_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	signatureHeader := r.Header.Get(SignatureHeader)
	if signatureHeader == "" {
		return nil, fmt.Errorf("missing signature header: %s", SignatureHeader)
	}

	algo, expectedHex, ok := strings.Cut(signatureHeader, "=")
	if !ok || strings.ToLower(algo) != "sha256" {
		return nil, fmt.Errorf("invalid signature format in header %s", SignatureHeader)
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(body)
	computedHex := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computedHex), []byte(strings.ToLower(expectedHex))) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}

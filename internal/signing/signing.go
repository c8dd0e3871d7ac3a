// Package signing implements the per-venue authentication primitives: OKX's
// HMAC-SHA256 request signing and Binance's Ed25519 PKCS#8 signing.
package signing

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fd1az/venue-gateway/internal/apperror"
)

// NowMS returns the current UTC wall-clock time in milliseconds, formatted
// as a decimal string — the timestamp representation every signed request
// needs.
func NowMS() string {
	return strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
}

// HMACSHA256Base64 computes OKX's request signature: base64(HMAC-SHA256(secret,
// timestamp||method||path||body)).
func HMACSHA256Base64(secret, timestamp, method, path, body string) (string, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	payload := timestamp + method + path + body
	if _, err := mac.Write([]byte(payload)); err != nil {
		return "", apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Ed25519SignBase64 signs payload with an Ed25519 private key, returning the
// base64-encoded 64-byte signature. secretOrPath is tried, in order, as:
//  1. an inline PEM string (contains "-----BEGIN"),
//  2. a filesystem path to a PEM-encoded key,
//  3. a filesystem path to a raw PKCS#8 DER-encoded key.
func Ed25519SignBase64(secretOrPath, payload string) (string, error) {
	key, err := loadEd25519Key(secretOrPath)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(key, []byte(payload))
	return base64.StdEncoding.EncodeToString(sig), nil
}

func loadEd25519Key(secretOrPath string) (ed25519.PrivateKey, error) {
	if strings.Contains(secretOrPath, "-----BEGIN") {
		return parsePKCS8PEM([]byte(secretOrPath))
	}

	if pemText, err := os.ReadFile(secretOrPath); err == nil {
		if strings.Contains(string(pemText), "-----BEGIN") {
			return parsePKCS8PEM(pemText)
		}
		// Same file, but not PEM text: treat its raw bytes as PKCS#8 DER.
		return parsePKCS8DER(pemText)
	}

	return nil, apperror.New(apperror.CodeSigningFailed,
		apperror.WithMessage(fmt.Sprintf("could not read Ed25519 key at %q", secretOrPath)))
}

func parsePKCS8PEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, apperror.New(apperror.CodeSigningFailed,
			apperror.WithMessage("failed to decode PEM block for Ed25519 key"))
	}
	return parsePKCS8DER(block.Bytes)
}

func parsePKCS8DER(der []byte) (ed25519.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperror.New(apperror.CodeSigningFailed,
			apperror.WithMessage("failed to parse PKCS#8 Ed25519 private key"),
			apperror.WithCause(err))
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, apperror.New(apperror.CodeSigningFailed,
			apperror.WithMessage("PKCS#8 key is not an Ed25519 private key"))
	}
	return edKey, nil
}

// SortedQueryString builds the `k=v&k=v` payload used by Binance's WS-API
// signing scheme: every pair sorted by key, ascending.
func SortedQueryString(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "&")
}

package signing

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"testing"
)

func TestHMACSHA256Base64Deterministic(t *testing.T) {
	sig1, err := HMACSHA256Base64("secret", "1700000000000", "GET", "/users/self/verify", "")
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := HMACSHA256Base64("secret", "1700000000000", "GET", "/users/self/verify", "")
	if err != nil {
		t.Fatal(err)
	}
	if sig1 != sig2 {
		t.Fatalf("HMAC signing is not deterministic: %s != %s", sig1, sig2)
	}
}

func TestSortedQueryString(t *testing.T) {
	got := SortedQueryString(map[string]string{"timestamp": "1700000000000", "apiKey": "K"})
	want := "apiKey=K&timestamp=1700000000000"
	if got != want {
		t.Fatalf("SortedQueryString = %q, want %q", got, want)
	}
}

func pkcs8PEMFixture(t *testing.T) (string, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), pub
}

func TestEd25519SignBase64InlinePEMIsDeterministic(t *testing.T) {
	pemKey, pub := pkcs8PEMFixture(t)

	sig1, err := Ed25519SignBase64(pemKey, "apiKey=K&timestamp=1700000000000")
	if err != nil {
		t.Fatal(err)
	}
	sig2, err := Ed25519SignBase64(pemKey, "apiKey=K&timestamp=1700000000000")
	if err != nil {
		t.Fatal(err)
	}
	if sig1 != sig2 {
		t.Fatalf("Ed25519 signing is not deterministic: %s != %s", sig1, sig2)
	}

	if !verify(t, pub, "apiKey=K&timestamp=1700000000000", sig1) {
		t.Fatal("signature does not verify against the fixture's public key")
	}
}

func verify(t *testing.T, pub ed25519.PublicKey, payload, sigB64 string) bool {
	t.Helper()
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatal(err)
	}
	return ed25519.Verify(pub, []byte(payload), sig)
}

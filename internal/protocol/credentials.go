package protocol

// Credentials are venue-dependent: OKX treats APISecret as an HMAC key;
// Binance treats it as a path to (or inline contents of) an Ed25519 PKCS#8
// private key in PEM or DER encoding.
type Credentials struct {
	APIKey      string
	APISecret   string
	Passphrase  string
	IsSimulated bool
}

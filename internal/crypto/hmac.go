package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SignBinanceQuery computes the signature Binance expects on signed
// endpoints: HMAC-SHA256 over the full query string (including the timestamp
// parameter), hex-encoded.
func SignBinanceQuery(secret, query string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignKrakenRequest computes the API-Sign header Kraken expects:
// HMAC-SHA512(base64-decoded secret, path + SHA256(nonce + postdata)),
// base64-encoded.
func SignKrakenRequest(secret, path, nonce, postdata string) (string, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("crypto: kraken secret is not valid base64: %w", err)
	}

	inner := sha256.Sum256([]byte(nonce + postdata))

	mac := hmac.New(sha512.New, secretBytes)
	mac.Write([]byte(path))
	mac.Write(inner[:])

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

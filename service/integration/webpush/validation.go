package webpush

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

func validatePushEndpoint(raw string, requireHTTPS bool) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u == nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid pushEndpoint URL")
	}

	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("pushEndpoint must use http or https")
	}

	if requireHTTPS && u.Scheme != "https" {
		return fmt.Errorf("encrypted webpush endpoint must use https")
	}

	return nil
}

func normalizeVAPIDPrivateKey(raw string) (string, error) {
	decoded, err := decodeKey(raw)
	if err != nil {
		return "", fmt.Errorf("invalid VAPID_PRIVATE_KEY encoding")
	}

	if len(decoded) != 32 {
		return "", fmt.Errorf("invalid VAPID_PRIVATE_KEY length: expected 32 bytes, got %d", len(decoded))
	}

	n := elliptic.P256().Params().N
	d := new(big.Int).SetBytes(decoded)
	if d.Sign() <= 0 || d.Cmp(n) >= 0 {
		return "", fmt.Errorf("invalid VAPID_PRIVATE_KEY scalar")
	}

	return base64.RawURLEncoding.EncodeToString(decoded), nil
}

func normalizeP256DH(raw string) (string, error) {
	decoded, err := decodeKey(raw)
	if err != nil {
		return "", fmt.Errorf("invalid WEBPUSH_P256DH (p256dh) encoding")
	}

	if len(decoded) != 65 || decoded[0] != 0x04 {
		return "", fmt.Errorf("invalid WEBPUSH_P256DH (p256dh) key format")
	}

	if _, err := ecdh.P256().NewPublicKey(decoded); err != nil {
		return "", fmt.Errorf("invalid WEBPUSH_P256DH (p256dh) point")
	}

	return base64.RawURLEncoding.EncodeToString(decoded), nil
}

func normalizeAuthSecret(raw string) (string, error) {
	decoded, err := decodeKey(raw)
	if err != nil {
		return "", fmt.Errorf("invalid WEBPUSH_AUTH encoding")
	}

	if len(decoded) != 16 {
		return "", fmt.Errorf("invalid WEBPUSH_AUTH length: expected 16 bytes, got %d", len(decoded))
	}

	return base64.RawURLEncoding.EncodeToString(decoded), nil
}

// decodeKey accepts base64url or standard base64, padded or not, since keys
// are pasted into the environment by hand.
func decodeKey(raw string) ([]byte, error) {
	key := strings.TrimSpace(raw)
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if decoded, err := enc.DecodeString(key); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("not base64")
}

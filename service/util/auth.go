package util

import (
	"crypto/subtle"
	"encoding/base64"
	"net"
	"net/http"
	"strings"
)

// Browsers cannot set headers on a websocket handshake, so the console offers
// two subprotocols: LiveProtocol, which the server selects, and
// LiveKeyPrefix+API_KEY carrying the key. The key never appears in the URL.
const (
	LiveProtocol  = "cardadmin.live"
	LiveKeyPrefix = "key."
)

// VerifyAPIKey accepts the key as a Bearer token, as the Basic auth password
// (any username) or, on websocket upgrades, as a LiveKeyPrefix subprotocol.
func VerifyAPIKey(r *http.Request, apiKey string) bool {
	if apiKey == "" {
		return false
	}

	password, ok := credentialFromHeader(r.Header.Get("Authorization"))
	if !ok && isWebSocketUpgrade(r) {
		password, ok = credentialFromSubprotocol(r.Header.Values("Sec-WebSocket-Protocol"))
	}
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(apiKey)) == 1
}

func credentialFromSubprotocol(values []string) (string, bool) {
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if key, found := strings.CutPrefix(strings.TrimSpace(p), LiveKeyPrefix); found {
				return key, true
			}
		}
	}
	return "", false
}

func credentialFromHeader(auth string) (string, bool) {
	switch {
	case auth == "":
		return "", false
	case strings.HasPrefix(auth, "Bearer "):
		return strings.TrimPrefix(auth, "Bearer "), true
	case strings.HasPrefix(auth, "Basic "):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			return "", false
		}
		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 {
			return "", false
		}
		return parts[1], true
	default:
		return "", false
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}

func IsLocalhost(ip string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}
	return parsedIP.IsLoopback()
}

func GetLANIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String()
			}
		}
	}

	return ""
}

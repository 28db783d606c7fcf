package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todo-backend/internal/config"
)

const (
	callerHeader   = "X-Todo-Caller"
	anonymousActor = "anonymous"
	tokenTypeSess  = "session"
)

type signedPayload struct {
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`           // caller identity
	Typ string `json:"typ,omitempty"` // "session"
	N   string `json:"n,omitempty"`   // nonce
}

// LoadOrInitSecret reads the signing key at path, creating a random one if the file is missing.
func LoadOrInitSecret(path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("web: secret file path is empty")
	}
	if b, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(b))) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func signToken(secret []byte, payload signedPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return p + "." + sig, nil
}

func verifyToken(secret []byte, token string, now time.Time) (signedPayload, error) {
	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return signedPayload{}, errors.New("invalid token format")
	}
	p, sig := parts[0], parts[1]

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	want := mac.Sum(nil)
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return signedPayload{}, errors.New("invalid token signature")
	}
	if !hmac.Equal(want, got) {
		return signedPayload{}, errors.New("invalid token signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	var sp signedPayload
	if err := json.Unmarshal(raw, &sp); err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	if sp.Exp == 0 {
		return signedPayload{}, errors.New("token missing exp")
	}
	if now.Unix() > sp.Exp {
		return signedPayload{}, errors.New("token expired")
	}
	if sp.Typ != tokenTypeSess {
		return signedPayload{}, errors.New("unexpected token type")
	}
	if strings.TrimSpace(sp.Sub) == "" {
		return signedPayload{}, errors.New("token missing sub")
	}
	return sp, nil
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IssueToken signs a session token naming caller, valid for ttl.
func IssueToken(secret []byte, caller string, ttl time.Duration) (string, time.Time, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return "", time.Time{}, errors.New("missing caller")
	}
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("missing secret")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}
	n, err := newNonce()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := time.Now().Add(ttl).Truncate(time.Second)
	tok, err := signToken(secret, signedPayload{
		Typ: tokenTypeSess,
		Sub: caller,
		N:   n,
		Exp: exp.Unix(),
	})
	return tok, exp, err
}

// resolveCaller is the identity boundary: it turns a request into an opaque
// caller id according to the configured auth mode.
func (s *Server) resolveCaller(r *http.Request) (string, error) {
	switch s.cfg.AuthMode {
	case config.AuthNone:
		return anonymousActor, nil
	case config.AuthDev:
		c := strings.TrimSpace(r.Header.Get(callerHeader))
		if c == "" {
			c = strings.TrimSpace(r.URL.Query().Get("caller"))
		}
		if c == "" {
			return "", errors.New("missing " + callerHeader + " header")
		}
		return c, nil
	case config.AuthToken:
		tok := bearerToken(r)
		if tok == "" {
			return "", errors.New("missing bearer token")
		}
		sp, err := verifyToken(s.cfg.Secret, tok, s.now())
		if err != nil {
			return "", err
		}
		return sp.Sub, nil
	default:
		return "", errors.New("auth misconfigured")
	}
}

// bearerToken reads the Authorization header, falling back to ?access_token=
// for EventSource/WebSocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

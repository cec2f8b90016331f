package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"retrolock/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

const bearerPrefix = "Bearer "

// tokenBytes is the amount of randomness in a generated secret.
const tokenBytes = 16

// Reasons reported in auth_denied log lines.
const (
	DenyMissing   = "missing"
	DenyMalformed = "malformed"
	DenyMismatch  = "mismatch"
)

// AccessRequest describes the caller of a guarded operation.
type AccessRequest struct {
	Operation string
	ClientIP  string
}

// Authorize reports whether header is exactly "Bearer <secret>".
// A secret that is a bcrypt hash is matched against the presented token.
func Authorize(header, secret string) bool {
	ok, _ := check(header, secret)
	return ok
}

func check(header, secret string) (bool, string) {
	if header == "" {
		return false, DenyMissing
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return false, DenyMalformed
	}
	presented := header[len(bearerPrefix):]
	if presented == "" {
		return false, DenyMalformed
	}
	if secret == "" {
		return false, DenyMismatch
	}

	if isBcryptHash(secret) {
		if bcrypt.CompareHashAndPassword([]byte(secret), []byte(presented)) != nil {
			return false, DenyMismatch
		}
		return true, ""
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
		return false, DenyMismatch
	}
	return true, ""
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// AccessService guards every operation with the shared secret.
type AccessService struct {
	secret string
	log    *logger.Logger
}

func NewAccessService(secret string, log *logger.Logger) *AccessService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccessService{secret: secret, log: log}
}

// Authorize checks header and writes one audit line for the outcome.
func (s *AccessService) Authorize(_ context.Context, header string, req AccessRequest) bool {
	ok, reason := check(header, s.secret)
	if ok {
		s.log.Infow("auth_granted", "operation", req.Operation, "client_ip", req.ClientIP)
		return true
	}
	s.log.Warnw("auth_denied", "operation", req.Operation, "client_ip", req.ClientIP, "reason", reason)
	return false
}

// GenerateToken returns a random URL-safe secret.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the bcrypt hash stored instead of a plaintext secret.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoAgentID = errors.New("token carries no agent identity")

// Claims are the fields the desk reads from the CRM-issued access token
type Claims struct {
	AgentID int    `json:"agent_id"`
	UserID  int    `json:"user_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Source supplies the opaque bearer credential. When a file is configured it
// is re-read on change so a rotated token is picked up without a restart.
type Source struct {
	static string
	file   string

	mu      sync.Mutex
	cached  string
	modTime int64
}

// NewSource creates a source from a literal token and/or a token file
func NewSource(token, file string) *Source {
	return &Source{static: strings.TrimSpace(token), file: file}
}

// Token returns the current credential, or "" when none is configured
func (s *Source) Token() string {
	if s.file == "" {
		return s.static
	}

	info, err := os.Stat(s.file)
	if err != nil {
		return s.static
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mt := info.ModTime().UnixNano(); mt != s.modTime || s.cached == "" {
		data, err := os.ReadFile(s.file)
		if err != nil {
			return s.static
		}
		s.cached = strings.TrimSpace(string(data))
		s.modTime = mt
	}
	if s.cached == "" {
		return s.static
	}
	return s.cached
}

// ParseClaims decodes the token's claims without verifying the signature.
// The CRM verifies the credential; the desk only needs to know who it is.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// AgentID resolves the agent identity from the token claims, trying
// agent_id, user_id, then a numeric subject
func AgentID(token string) (int, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return 0, err
	}

	switch {
	case claims.AgentID > 0:
		return claims.AgentID, nil
	case claims.UserID > 0:
		return claims.UserID, nil
	}
	if id, err := strconv.Atoi(claims.Subject); err == nil && id > 0 {
		return id, nil
	}
	return 0, ErrNoAgentID
}

// Package auth decides whether a hello may open a master or operator
// session, and issues the signed session tokens masters can reconnect with.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"github.com/chinbo/chinbo-server/internal/common"
	"github.com/chinbo/chinbo-server/internal/server/models"
	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo binds derived keys to master session signing.
const sessionKeyInfo = "chinbo master session v1"

// TokenSource is the read side of the registry the gate needs.
type TokenSource interface {
	OpToken(office string) string
	MasterTokens() []string
	GlobalTokens() models.TokenPair
}

type Gate struct {
	tokens   TokenSource
	secret   []byte
	validity time.Duration
}

// NewGate derives the session signing key from secretKey.
func NewGate(tokens TokenSource, secretKey string, validity time.Duration) *Gate {
	return &Gate{tokens: tokens, secret: deriveSessionKey(secretKey), validity: validity}
}

func deriveSessionKey(secret string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		panic(err)
	}
	return key
}

// CheckMaster accepts the global master token or the master token of any
// office. An empty token never matches.
func (g *Gate) CheckMaster(token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing master token", common.ErrAuthRejected)
	}
	for _, candidate := range g.tokens.MasterTokens() {
		if equal(token, candidate) {
			return nil
		}
	}
	return fmt.Errorf("%w: master token", common.ErrAuthRejected)
}

// CheckOperator accepts the operator token of office (global fallback
// included) or the global operator token.
func (g *Gate) CheckOperator(office, token string) error {
	if token == "" {
		return fmt.Errorf("%w: missing operator token", common.ErrAuthRejected)
	}
	if equal(token, g.tokens.OpToken(office)) || equal(token, g.tokens.GlobalTokens().OpToken) {
		return nil
	}
	return fmt.Errorf("%w: operator token for office %q", common.ErrAuthRejected, office)
}

// IssueMasterSession returns a signed token a master can present instead of
// its credential until it expires.
func (g *Gate) IssueMasterSession() (string, error) {
	return GenerateToken(RoleMaster, g.secret, g.validity)
}

// CheckMasterSession validates a token from IssueMasterSession.
func (g *Gate) CheckMasterSession(session string) error {
	claims, err := ParseToken(session, g.secret)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrAuthRejected, err)
	}
	if claims.Role != RoleMaster {
		return fmt.Errorf("%w: session role %q", common.ErrAuthRejected, claims.Role)
	}
	return nil
}

func equal(a, b string) bool {
	if b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

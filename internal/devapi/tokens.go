package devapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/blood-bank-console/users"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	claimTokenType  = "token_type"
	claimUserID     = "user_id"
	claimUsername   = "username"
	claimRole       = "role"
	claimGeneration = "gen"
)

// tokenClaims is the decoded subset of claims the handlers rely on
type tokenClaims struct {
	TokenType  string
	UserID     int64
	JTI        string
	Expires    time.Time
	Generation int64
}

// issue creates a signed token of the given type for u
func (a *API) issue(tokenType string, u *users.User, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		claimTokenType:  tokenType,
		claimUserID:     u.ID,
		claimUsername:   u.Username,
		claimRole:       string(u.Role),
		claimGeneration: a.generation(),
		"jti":           uuid.NewString(),
		"iat":           now.Unix(),
		"exp":           now.Add(ttl).Unix(),
	}
	return a.signer.Sign(claims)
}

// verify parses tokenString and checks it is a live token of tokenType
func (a *API) verify(tokenString, tokenType string) (*tokenClaims, error) {
	claims, err := a.signer.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	tc := &tokenClaims{}
	tc.TokenType, _ = claims[claimTokenType].(string)
	if tc.TokenType != tokenType {
		return nil, errors.Errorf("token has wrong type %q", tc.TokenType)
	}
	if id, ok := claims[claimUserID].(float64); ok {
		tc.UserID = int64(id)
	}
	if gen, ok := claims[claimGeneration].(float64); ok {
		tc.Generation = int64(gen)
	}
	tc.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.Expires = exp.Time
	}

	if tokenType == tokenTypeAccess && tc.Generation < a.accessFloor() {
		return nil, errors.New("access token has been expired")
	}
	if tokenType == tokenTypeRefresh && a.revoked.IsRevoked(tc.JTI) {
		return nil, errors.New("token is blacklisted")
	}
	return tc, nil
}

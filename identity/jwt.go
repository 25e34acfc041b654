// Package identity turns bearer tokens into circulation actors.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 7 * 24 * time.Hour

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserLookup loads the current record of a user.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// JWTOracle issues HS256 tokens and resolves them back to actors. Role,
// branch and active flag are read from the store on every resolution, so a
// demoted or deactivated user loses access without waiting for expiry.
type JWTOracle struct {
	secret  []byte
	users   UserLookup
	now     func() time.Time
	timeout time.Duration
}

// OracleOption configures a JWTOracle.
type OracleOption func(*JWTOracle)

// WithLookupTimeout bounds the user lookup of each Resolve.
func WithLookupTimeout(d time.Duration) OracleOption {
	return func(o *JWTOracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewJWTOracle(secret string, users UserLookup, opts ...OracleOption) *JWTOracle {
	o := &JWTOracle{
		secret:  []byte(secret),
		users:   users,
		now:     time.Now,
		timeout: circulation.DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Issue signs a token for user.
func (o *JWTOracle) Issue(user *models.User) (string, error) {
	now := o.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.secret)
}

// Resolve validates credential and returns the actor it names. Invalid or
// expired tokens and unknown users resolve to Forbidden(ErrUnauthorized). A
// lookup that outlives the timeout is StoreUnavailable.
func (o *JWTOracle) Resolve(ctx context.Context, credential string) (models.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return o.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(o.now))
	if err != nil || !token.Valid || claims.UserID == "" {
		return models.Actor{}, circulation.Forbidden(circulation.ErrUnauthorized, "")
	}
	lookupCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	user, err := o.users.UserByID(lookupCtx, claims.UserID)
	if errors.Is(err, circulation.ErrUserNotFound) {
		return models.Actor{}, circulation.Forbidden(circulation.ErrUnauthorized, claims.UserID)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.Actor{}, circulation.StoreFailure(err)
	}
	if err != nil {
		return models.Actor{}, err
	}
	return user.Actor(), nil
}

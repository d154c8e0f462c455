package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example.com/campus-chat/models"
)

var (
	errTokenExpired = errors.New("token expired")
	errTokenInvalid = errors.New("token invalid")
)

type TokenOptions struct {
	Exp    time.Duration
	Secret []byte
}

// IdentityClaims carries the identity assertion attached to a connection by
// the authentication collaborator: the user id and display name.
type IdentityClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func NewIdentityClaims(identity models.Identity, exp time.Time) *IdentityClaims {
	return &IdentityClaims{
		identity.Name,
		jwt.RegisteredClaims{
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "campus-chat",
		},
	}
}

// SignIdentity signs an identity token. It exists for the excluded auth
// collaborator and for tests; the relay itself only verifies.
func SignIdentity(identity models.Identity, options TokenOptions) (string, error) {
	claims := NewIdentityClaims(identity, time.Now().Add(options.Exp))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(options.Secret)
}

// VerifyIdentity verifies a signed identity token and returns the identity
// it asserts. It is shared with the REST layer so both surfaces accept the
// same tokens.
func VerifyIdentity(token string, options TokenOptions) (models.Identity, error) {
	claims, err := verifyToken(token, options)
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

func verifyToken(token string, options TokenOptions) (*IdentityClaims, error) {
	claims := &IdentityClaims{}

	_token, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return options.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	switch {
	case _token != nil && _token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errTokenExpired
	default:
		return nil, errTokenInvalid
	}
}

// TokenAuthenticator authenticates a websocket upgrade request with a signed
// identity token. Browsers cannot set headers on websocket requests, so the
// token is read from the "token" query parameter, falling back to a bearer
// Authorization header.
type TokenAuthenticator struct {
	options TokenOptions
}

func NewTokenAuthenticator(options TokenOptions) *TokenAuthenticator {
	return &TokenAuthenticator{options: options}
}

func (a *TokenAuthenticator) Authenticate(w http.ResponseWriter, req *http.Request) (models.Identity, bool) {
	token := req.URL.Query().Get("token")
	if token == "" {
		header := req.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return models.Identity{}, false
	}

	claims, err := verifyToken(token, a.options)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return models.Identity{}, false
	}

	return models.Identity{UserID: claims.Subject, Name: claims.Name}, true
}

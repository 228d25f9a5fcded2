package security

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options controls signing and token TTL.
type Options struct {
	Secret []byte        // HMAC key
	TTL    time.Duration // token validity, default 12h
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, TTL: 12 * time.Hour}
}

// Identity is what a verified token resolves to. The relay trusts this
// pair completely; credential checking happens in the external auth service
// before a token is ever issued.
type Identity struct {
	UserID   int64
	Username string
}

// Generate issues an HS256 token for an already-authenticated user.
func Generate(opts Options, userID int64, username string) (string, time.Time, error) {
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	now := time.Now()
	exp := now.Add(opts.TTL)

	claims := jwtlib.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"name": username,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  exp.Unix(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(opts.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates a token and returns the identity it carries.
func Verify(opts Options, token string) (Identity, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}
	sub, _ := claims["sub"].(string)
	uid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || uid <= 0 {
		return Identity{}, fmt.Errorf("invalid subject %q", sub)
	}
	name, _ := claims["name"].(string)
	return Identity{UserID: uid, Username: name}, nil
}

package statuslist

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jws"
)

// Generator signs status list tokens for the issuer.
type Generator struct {
	key    *ecdsa.PrivateKey
	kid    string
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

type GeneratorConfig struct {
	// Key signs every list token.
	Key *ecdsa.PrivateKey
	// KeyID is placed in the JOSE kid header.
	KeyID string
	// Issuer is the iss claim, the issuer DID.
	Issuer string
	// TokenTTL is the exp window of signed tokens. Required.
	TokenTTL time.Duration
	Clock    func() time.Time
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Key == nil {
		return nil, errors.New("statuslist: signing key not configured")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("statuslist: issuer not configured")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("statuslist: token ttl not configured")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Generator{
		key:    cfg.Key,
		kid:    cfg.KeyID,
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		clock:  clock,
	}, nil
}

// Sign compresses the list and wraps it in a signed token. subject is the
// URL the list is served from.
func (g *Generator) Sign(subject string, bits *BitString) (string, error) {
	compressed, err := bits.Compress()
	if err != nil {
		return "", err
	}

	now := g.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
		StatusList: EncodedList{
			Bits: BitsPerEntry,
			List: base64.RawURLEncoding.EncodeToString(compressed),
		},
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	headers := jws.NewHeaders()
	if err := headers.Set(jws.TypeKey, TokenType); err != nil {
		return "", err
	}
	if g.kid != "" {
		if err := headers.Set(jws.KeyIDKey, g.kid); err != nil {
			return "", err
		}
	}

	signed, err := jws.Sign(payload, jwa.ES256, g.key, jws.WithHeaders(headers))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

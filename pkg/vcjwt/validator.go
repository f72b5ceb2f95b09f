package vcjwt

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dtw/pkg/didresolver"
	"dtw/pkg/logger"
	"dtw/pkg/vcerror"
)

// Validator checks VP and VC tokens: ES256 signature against the resolved
// DID key, temporal claims, and the W3C type arrays. Detailed crypto errors
// are logged and never surfaced to clients.
type Validator struct {
	resolver    didresolver.Resolver
	clock       func() time.Time
	allowedSkew time.Duration
	log         *logger.Log
}

type ValidatorOption func(*Validator)

// WithClock replaces the validation time source.
func WithClock(clock func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.clock = clock
	}
}

// WithAllowedSkew widens exp, nbf and iat checks in both directions.
func WithAllowedSkew(skew time.Duration) ValidatorOption {
	return func(v *Validator) {
		v.allowedSkew = skew
	}
}

func NewValidator(resolver didresolver.Resolver, log *logger.Log, opts ...ValidatorOption) *Validator {
	v := &Validator{
		resolver: resolver,
		clock:    time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateVP parses and verifies one presentation token.
func (v *Validator) ValidateVP(ctx context.Context, token string) (*VPClaims, error) {
	claims := &VPClaims{}
	if err := v.parse(ctx, token, claims); err != nil {
		v.log.Debug("vp validation failed", "err", err.Error())
		return nil, vcerror.New(vcerror.ErrPresValidateVPProofError, vcerror.MsgVPValidationFailed)
	}
	if !hasType(claims.VP.Type, TypeVerifiablePresentation) {
		return nil, vcerror.New(vcerror.ErrPresValidateVPProofError, "vp type missing VerifiablePresentation")
	}
	if claims.Subject != "" && claims.VP.Holder != "" && claims.Subject != claims.VP.Holder {
		return nil, vcerror.New(vcerror.ErrPresHolderPublicKeyInconsistent, "presentation subject does not match vp holder")
	}
	return claims, nil
}

// ValidateVC parses and verifies one credential token. Temporal failures map
// onto their own codes so callers can report expiry distinctly.
func (v *Validator) ValidateVC(ctx context.Context, token string) (*VCClaims, error) {
	claims := &VCClaims{}
	if err := v.parse(ctx, token, claims); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, vcerror.New(vcerror.ErrCredVCExpired, "VC expired")
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, vcerror.New(vcerror.ErrCredVCNotYetValid, "VC not yet valid")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid) && strings.Contains(err.Error(), "signing method"):
			return nil, vcerror.New(vcerror.ErrCredVCUnsupportedAlgorithm, "VC signing algorithm not supported")
		}
		v.log.Debug("vc validation failed", "err", err.Error())
		return nil, vcerror.New(vcerror.ErrCredValidateVCProofError, vcerror.MsgVCValidationFailed)
	}
	if !hasType(claims.VC.Type, TypeVerifiableCredential) {
		return nil, vcerror.New(vcerror.ErrCredVCTypeMissing, "vc type missing VerifiableCredential")
	}
	return claims, nil
}

func (v *Validator) parse(ctx context.Context, token string, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithLeeway(v.allowedSkew),
		jwt.WithTimeFunc(v.clock),
		jwt.WithIssuedAt(),
	)
	_, err := parser.ParseWithClaims(token, claims, v.keyfunc(ctx))
	return err
}

// keyfunc resolves the signing key. The kid header wins; without one the
// issuer (VC) or holder (VP) claim identifies the key owner. Claims are
// decoded before the keyfunc runs, so both are available here.
func (v *Validator) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		did, kid := keyHint(t)
		if did == "" {
			return nil, errors.New("token carries no resolvable key identifier")
		}
		return v.resolver.Resolve(ctx, did, kid)
	}
}

func keyHint(t *jwt.Token) (did string, kid string) {
	if raw, ok := t.Header["kid"].(string); ok && raw != "" {
		did = raw
		if i := strings.Index(raw, "#"); i > 0 {
			did = raw[:i]
		}
		return did, raw
	}
	switch c := t.Claims.(type) {
	case *VCClaims:
		return c.Issuer, ""
	case *VPClaims:
		return c.HolderDID(), ""
	}
	return "", ""
}

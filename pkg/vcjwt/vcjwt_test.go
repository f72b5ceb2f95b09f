package vcjwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtw/pkg/didresolver"
	"dtw/pkg/logger"
	"dtw/pkg/vcerror"
)

const (
	issuerDID   = "did:example:issuer123"
	holderDID   = "did:example:holder456"
	verifierDID = "did:example:verifier789"
)

type fixture struct {
	issuerKey *ecdsa.PrivateKey
	holderKey *ecdsa.PrivateKey
	resolver  *didresolver.Local
	validator *Validator
	now       time.Time
}

func newFixture(t *testing.T, opts ...ValidatorOption) *fixture {
	t.Helper()

	log, err := logger.New("test", "", false)
	require.NoError(t, err)

	issuerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	holderKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	resolver := didresolver.NewLocal()
	resolver.Register(issuerDID, issuerKey.Public())
	resolver.Register(holderDID, holderKey.Public())

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	opts = append([]ValidatorOption{WithClock(func() time.Time { return now })}, opts...)

	return &fixture{
		issuerKey: issuerKey,
		holderKey: holderKey,
		resolver:  resolver,
		validator: NewValidator(resolver, log, opts...),
		now:       now,
	}
}

func (f *fixture) vcClaims() *VCClaims {
	return &VCClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerDID,
			Subject:   holderDID,
			ID:        "vc-12345",
			IssuedAt:  jwt.NewNumericDate(f.now.Add(-time.Hour)),
			NotBefore: jwt.NewNumericDate(f.now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
		VC: VC{
			Context: []string{ContextCredentialsV1},
			Type:    []string{TypeVerifiableCredential, "NationalIDCredential"},
			Issuer:  issuerDID,
			CredentialSubject: map[string]any{
				"id":              holderDID,
				"document_number": "A123456789",
				"name":            "Test User",
			},
		},
	}
}

func (f *fixture) vpClaims(vcs ...string) *VPClaims {
	return &VPClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   holderDID,
			ID:        "nonce-67890",
			Audience:  jwt.ClaimStrings{verifierDID},
			IssuedAt:  jwt.NewNumericDate(f.now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
		VP: VP{
			Context:              []string{ContextCredentialsV1},
			Type:                 []string{TypeVerifiablePresentation},
			VerifiableCredential: vcs,
			Holder:               holderDID,
		},
	}
}

func (f *fixture) signVC(t *testing.T, claims *VCClaims) string {
	t.Helper()
	token, err := SignVC(claims, f.issuerKey, issuerDID+"#key-1")
	require.NoError(t, err)
	return token
}

func (f *fixture) signVP(t *testing.T, claims *VPClaims) string {
	t.Helper()
	token, err := SignVP(claims, f.holderKey, holderDID+"#key-1")
	require.NoError(t, err)
	return token
}

func TestValidateVP(t *testing.T) {
	f := newFixture(t)
	vcToken := f.signVC(t, f.vcClaims())
	vpToken := f.signVP(t, f.vpClaims(vcToken))

	claims, err := f.validator.ValidateVP(context.Background(), vpToken)
	require.NoError(t, err)

	assert.Equal(t, holderDID, claims.HolderDID())
	assert.Equal(t, "nonce-67890", claims.Nonce())
	assert.Equal(t, verifierDID, claims.ClientID())
	require.Len(t, claims.VP.VerifiableCredential, 1)
	assert.Equal(t, vcToken, claims.VP.VerifiableCredential[0])
}

func TestValidateVPTamperedSignature(t *testing.T) {
	f := newFixture(t)
	vpToken := f.signVP(t, f.vpClaims())

	parts := strings.Split(vpToken, ".")
	require.Len(t, parts, 3)
	sig := parts[2]
	flipped := "B"
	if sig[0] == 'B' {
		flipped = "C"
	}
	tampered := parts[0] + "." + parts[1] + "." + flipped + sig[1:]

	_, err := f.validator.ValidateVP(context.Background(), tampered)
	require.Error(t, err)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrPresValidateVPProofError))

	// Crypto detail stays server side.
	vcErr := vcerror.FromError(err)
	assert.Equal(t, vcerror.MsgVPValidationFailed, vcErr.Message)
}

func TestValidateVPTamperedPayload(t *testing.T) {
	f := newFixture(t)
	vpToken := f.signVP(t, f.vpClaims())

	parts := strings.Split(vpToken, ".")
	require.Len(t, parts, 3)
	payload := parts[1]
	flipped := "A"
	if payload[0] == 'A' {
		flipped = "B"
	}
	tampered := parts[0] + "." + flipped + payload[1:] + "." + parts[2]

	_, err := f.validator.ValidateVP(context.Background(), tampered)
	require.Error(t, err)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrPresValidateVPProofError))
	assert.Equal(t, vcerror.MsgVPValidationFailed, vcerror.FromError(err).Message)
}

func TestValidateVPWrongKey(t *testing.T) {
	f := newFixture(t)
	// Signed by the issuer key while claiming to be the holder.
	claims := f.vpClaims()
	token, err := SignVP(claims, f.issuerKey, holderDID+"#key-1")
	require.NoError(t, err)

	_, err = f.validator.ValidateVP(context.Background(), token)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrPresValidateVPProofError))
}

func TestValidateVPTypeMissing(t *testing.T) {
	f := newFixture(t)
	claims := f.vpClaims()
	claims.VP.Type = []string{"SomeOtherType"}
	token := f.signVP(t, claims)

	_, err := f.validator.ValidateVP(context.Background(), token)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrPresValidateVPProofError))
}

func TestValidateVPHolderMismatch(t *testing.T) {
	f := newFixture(t)
	claims := f.vpClaims()
	claims.VP.Holder = "did:example:somebodyelse"
	token := f.signVP(t, claims)

	_, err := f.validator.ValidateVP(context.Background(), token)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrPresHolderPublicKeyInconsistent))
}

func TestValidateVC(t *testing.T) {
	f := newFixture(t)
	token := f.signVC(t, f.vcClaims())

	claims, err := f.validator.ValidateVC(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, issuerDID, claims.Issuer)
	assert.Equal(t, holderDID, claims.Subject)
	assert.Equal(t, "A123456789", claims.VC.CredentialSubject["document_number"])
}

func TestValidateVCTemporal(t *testing.T) {
	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		claims := f.vcClaims()
		claims.ExpiresAt = jwt.NewNumericDate(f.now.Add(-time.Minute))
		token := f.signVC(t, claims)

		_, err := f.validator.ValidateVC(context.Background(), token)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredVCExpired))
	})

	t.Run("not yet valid", func(t *testing.T) {
		f := newFixture(t)
		claims := f.vcClaims()
		claims.NotBefore = jwt.NewNumericDate(f.now.Add(time.Hour))
		token := f.signVC(t, claims)

		_, err := f.validator.ValidateVC(context.Background(), token)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredVCNotYetValid))
	})

	t.Run("skew widens the window", func(t *testing.T) {
		f := newFixture(t, WithAllowedSkew(2*time.Minute))
		claims := f.vcClaims()
		claims.ExpiresAt = jwt.NewNumericDate(f.now.Add(-time.Minute))
		token := f.signVC(t, claims)

		_, err := f.validator.ValidateVC(context.Background(), token)
		assert.NoError(t, err)
	})
}

func TestValidateVCUnsupportedAlgorithm(t *testing.T) {
	f := newFixture(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, f.vcClaims())
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = f.validator.ValidateVC(context.Background(), signed)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrCredVCUnsupportedAlgorithm))
}

func TestValidateVCTypeMissing(t *testing.T) {
	f := newFixture(t)
	claims := f.vcClaims()
	claims.VC.Type = []string{"NationalIDCredential"}
	token := f.signVC(t, claims)

	_, err := f.validator.ValidateVC(context.Background(), token)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrCredVCTypeMissing))
}

func TestValidateVCUnknownIssuer(t *testing.T) {
	f := newFixture(t)
	claims := f.vcClaims()
	claims.Issuer = "did:example:unknown"
	token, err := SignVC(claims, f.issuerKey, "")
	require.NoError(t, err)

	_, err = f.validator.ValidateVC(context.Background(), token)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrCredValidateVCProofError))
}

func TestCredentialStatusIndex(t *testing.T) {
	entry := &CredentialStatus{StatusListIndex: "42"}
	got, err := entry.Index()
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	entry.StatusListIndex = "not-a-number"
	_, err = entry.Index()
	assert.Error(t, err)
}

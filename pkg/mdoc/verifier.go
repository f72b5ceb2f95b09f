package mdoc

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"

	"dtw/pkg/logger"
	"dtw/pkg/trust"
)

// Stage marks how far a document made it through verification. Stages are
// ordered; a failure leaves the result at the last stage that passed.
type Stage string

const (
	StageNone              Stage = "NONE"
	StageParsed            Stage = "PARSED"
	StageIssuerCOSEParsed  Stage = "ISSUER_COSE_PARSED"
	StageCertValidated     Stage = "CERT_VALIDATED"
	StageMSOVerified       Stage = "MSO_VERIFIED"
	StageDigestsVerified   Stage = "DIGESTS_VERIFIED"
	StageDeviceVerified    Stage = "DEVICE_VERIFIED"
	StageTemporalValidated Stage = "TEMPORAL_VALIDATED"
)

// ErrDigestMismatch marks issuer signed data whose recomputed digest does
// not match the mobile security object.
var ErrDigestMismatch = errors.New("digest mismatch")

// oidMDLDocumentSigner is the mdoc document signer extended key usage.
var oidMDLDocumentSigner = asn1.ObjectIdentifier{1, 0, 18013, 5, 1, 2}

// Verifier runs the full mdoc verification pipeline.
type Verifier struct {
	evaluator      trust.Evaluator
	roots          []*x509.Certificate
	httpClient     *http.Client
	skipRevocation bool
	clock          func() time.Time
	log            *logger.Log
}

type VerifierConfig struct {
	// TrustRoots are IACA roots used to build the default evaluator.
	// Ignored when TrustEvaluator is set.
	TrustRoots []*x509.Certificate
	// TrustEvaluator overrides the static root pool.
	TrustEvaluator trust.Evaluator
	// SkipRevocationCheck disables the OCSP lookup on document signers.
	SkipRevocationCheck bool
	// HTTPClient performs OCSP calls. Required unless SkipRevocationCheck;
	// it must carry a timeout.
	HTTPClient *http.Client
	// Clock supplies the verification time.
	Clock func() time.Time
	Log   *logger.Log
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Log == nil {
		return nil, errors.New("mdoc: logger not configured")
	}

	evaluator := cfg.TrustEvaluator
	if evaluator == nil {
		clockOpts := []trust.StaticOption{}
		if cfg.Clock != nil {
			clockOpts = append(clockOpts, trust.WithClock(cfg.Clock))
		}
		static, err := trust.NewStatic(cfg.TrustRoots, clockOpts...)
		if err != nil {
			return nil, err
		}
		evaluator = static
	}

	if !cfg.SkipRevocationCheck {
		if cfg.HTTPClient == nil {
			return nil, errors.New("mdoc: http client required for revocation checks")
		}
		if cfg.HTTPClient.Timeout <= 0 {
			return nil, errors.New("mdoc: http client has no timeout")
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Verifier{
		evaluator:      evaluator,
		roots:          cfg.TrustRoots,
		httpClient:     cfg.HTTPClient,
		skipRevocation: cfg.SkipRevocationCheck,
		clock:          clock,
		log:            cfg.Log,
	}, nil
}

// VerificationResult is the outcome of one document verification. On error
// Stage tells how far the document got.
type VerificationResult struct {
	Stage      Stage
	DocType    string
	Issuer     string
	Claims     map[string]any
	ValidFrom  time.Time
	ValidUntil time.Time
}

// Verify runs the pipeline in its fixed order: parse, issuer COSE parse,
// certificate validation, MSO signature, value digests, device signature,
// validity window. Digests are checked before the device signature so data
// tampering is reported even when proof of possession also fails.
func (v *Verifier) Verify(ctx context.Context, docBytes []byte) (*VerificationResult, error) {
	result := &VerificationResult{Stage: StageNone}

	doc := &Document{}
	if err := cbor.Unmarshal(docBytes, doc); err != nil {
		return result, fmt.Errorf("malformed mdoc: %w", err)
	}
	if doc.DocType != DocTypeMDL {
		return result, fmt.Errorf("unsupported docType %q", doc.DocType)
	}
	if len(doc.IssuerSigned.NameSpaces) == 0 {
		return result, errors.New("no issuer signed namespaces")
	}
	result.Stage = StageParsed
	result.DocType = doc.DocType

	issuerAuth, err := ParseSign1(doc.IssuerSigned.IssuerAuth)
	if err != nil {
		return result, err
	}
	chain, err := issuerAuth.CertificateChain()
	if err != nil {
		return result, err
	}
	result.Stage = StageIssuerCOSEParsed

	leaf, err := v.validateChain(ctx, chain, doc.DocType)
	if err != nil {
		return result, err
	}
	result.Stage = StageCertValidated
	result.Issuer = leaf.Subject.CommonName

	mso, err := v.verifyMSO(issuerAuth, leaf, doc.DocType)
	if err != nil {
		return result, err
	}
	result.Stage = StageMSOVerified

	if err := verifyDigests(doc, mso); err != nil {
		return result, err
	}
	result.Stage = StageDigestsVerified

	if err := verifyDeviceAuth(doc, mso); err != nil {
		return result, err
	}
	result.Stage = StageDeviceVerified

	now := v.clock()
	if now.Before(mso.ValidityInfo.ValidFrom) {
		return result, fmt.Errorf("document not valid before %s", mso.ValidityInfo.ValidFrom.Format(time.RFC3339))
	}
	if now.After(mso.ValidityInfo.ValidUntil) {
		return result, fmt.Errorf("document expired at %s", mso.ValidityInfo.ValidUntil.Format(time.RFC3339))
	}
	result.Stage = StageTemporalValidated
	result.ValidFrom = mso.ValidityInfo.ValidFrom
	result.ValidUntil = mso.ValidityInfo.ValidUntil
	result.Claims = FlattenClaims(doc)

	return result, nil
}

func (v *Verifier) validateChain(ctx context.Context, chain []*x509.Certificate, docType string) (*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, errors.New("empty x5chain")
	}
	leaf := chain[0]

	decision, err := v.evaluator.Evaluate(ctx, &trust.EvaluationRequest{
		SubjectID: leaf.Subject.CommonName,
		KeyType:   trust.KeyTypeX5C,
		Chain:     chain,
		Role:      trust.RoleCredentialIssuer,
		DocType:   docType,
	})
	if err != nil {
		return nil, fmt.Errorf("trust evaluation: %w", err)
	}
	if !decision.Trusted {
		return nil, fmt.Errorf("document signer not trusted: %s", decision.Reason)
	}

	if leaf.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return nil, errors.New("document signer lacks digitalSignature key usage")
	}
	if !hasMDLSignerEKU(leaf) {
		return nil, errors.New("document signer lacks the mdoc signing extended key usage")
	}

	if !v.skipRevocation {
		if err := v.checkRevocation(ctx, chain); err != nil {
			return nil, err
		}
	}
	return leaf, nil
}

func hasMDLSignerEKU(cert *x509.Certificate) bool {
	for _, oid := range cert.UnknownExtKeyUsage {
		if oid.Equal(oidMDLDocumentSigner) {
			return true
		}
	}
	return false
}

func (v *Verifier) verifyMSO(issuerAuth *Sign1, leaf *x509.Certificate, docType string) (*MobileSecurityObject, error) {
	alg, err := issuerAuth.Algorithm()
	if err != nil {
		return nil, err
	}
	if alg != AlgES256 {
		return nil, fmt.Errorf("unsupported COSE algorithm %d", alg)
	}

	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("document signer key is not ECDSA")
	}
	if err := issuerAuth.VerifyES256(pub); err != nil {
		return nil, fmt.Errorf("issuer signature: %w", err)
	}

	mso, err := parseMSO(issuerAuth.Payload)
	if err != nil {
		return nil, err
	}
	if mso.DigestAlgorithm != DigestAlgorithmSHA256 {
		return nil, fmt.Errorf("unsupported digest algorithm %q", mso.DigestAlgorithm)
	}
	if mso.DocType != docType {
		return nil, fmt.Errorf("MSO docType %q does not match document %q", mso.DocType, docType)
	}
	return mso, nil
}

// parseMSO decodes the issuerAuth payload, tolerating the tag 24 byte
// string wrapper some encoders emit.
func parseMSO(payload []byte) (*MobileSecurityObject, error) {
	mso := &MobileSecurityObject{}
	if err := cbor.Unmarshal(payload, mso); err == nil && mso.Version != "" {
		return mso, nil
	}

	var tagged cbor.RawTag
	if err := cbor.Unmarshal(payload, &tagged); err == nil && tagged.Number == 24 {
		var inner []byte
		if err := cbor.Unmarshal(tagged.Content, &inner); err == nil {
			if err := cbor.Unmarshal(inner, mso); err == nil && mso.Version != "" {
				return mso, nil
			}
		}
	}
	return nil, errors.New("malformed mobile security object")
}

// verifyDigests recomputes every disclosed element digest and compares it
// against the MSO.
func verifyDigests(doc *Document, mso *MobileSecurityObject) error {
	for namespace, items := range doc.IssuerSigned.NameSpaces {
		expected, ok := mso.ValueDigests[namespace]
		if !ok {
			return fmt.Errorf("no value digests for namespace %s", namespace)
		}
		for _, item := range items {
			computed, err := ItemDigest(item)
			if err != nil {
				return err
			}
			want, ok := expected[item.DigestID]
			if !ok {
				return fmt.Errorf("no digest for digestID %d in namespace %s", item.DigestID, namespace)
			}
			if !bytes.Equal(computed, want) {
				return fmt.Errorf("%w for %s/%s (digestID %d)", ErrDigestMismatch, namespace, item.ElementIdentifier, item.DigestID)
			}
		}
	}
	return nil
}

// verifyDeviceAuth checks the holder's proof of possession with the device
// key the issuer pinned into the MSO.
func verifyDeviceAuth(doc *Document, mso *MobileSecurityObject) error {
	sigBytes := doc.DeviceSigned.DeviceAuth.DeviceSignature
	if len(sigBytes) == 0 {
		return errors.New("missing device signature")
	}

	deviceAuth, err := ParseSign1(sigBytes)
	if err != nil {
		return fmt.Errorf("device auth: %w", err)
	}
	if len(deviceAuth.Payload) == 0 {
		return errors.New("device auth payload is detached")
	}

	devicePub, err := PublicKeyFromCOSEKey(mso.DeviceKeyInfo.DeviceKey)
	if err != nil {
		return fmt.Errorf("device key: %w", err)
	}
	if err := deviceAuth.VerifyES256(devicePub); err != nil {
		return fmt.Errorf("device signature: %w", err)
	}
	return nil
}

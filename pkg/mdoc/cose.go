package mdoc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

const (
	// AlgES256 is the COSE algorithm identifier for ECDSA P-256 SHA-256.
	AlgES256 = -7

	headerLabelAlg     = 1
	headerLabelX5Chain = 33
)

// Sign1 is a parsed COSE_Sign1 message.
type Sign1 struct {
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

// sign1Message mirrors the COSE_Sign1 four element array.
type sign1Message struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[any]any
	Payload     []byte
	Signature   []byte
}

// ParseSign1 decodes a COSE_Sign1, tolerating the optional tag 18 wrapper.
func ParseSign1(data []byte) (*Sign1, error) {
	var msg sign1Message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		var tagged cbor.RawTag
		if terr := cbor.Unmarshal(data, &tagged); terr != nil || tagged.Number != 18 {
			return nil, fmt.Errorf("malformed COSE_Sign1: %w", err)
		}
		if err := cbor.Unmarshal(tagged.Content, &msg); err != nil {
			return nil, fmt.Errorf("malformed COSE_Sign1 content: %w", err)
		}
	}
	return &Sign1{
		Protected:   msg.Protected,
		Unprotected: msg.Unprotected,
		Payload:     msg.Payload,
		Signature:   msg.Signature,
	}, nil
}

func (s *Sign1) protectedHeader() (map[any]any, error) {
	header := map[any]any{}
	if len(s.Protected) == 0 {
		return header, nil
	}
	if err := cbor.Unmarshal(s.Protected, &header); err != nil {
		return nil, fmt.Errorf("malformed protected header: %w", err)
	}
	return header, nil
}

// Algorithm returns the COSE algorithm from the protected header.
func (s *Sign1) Algorithm() (int64, error) {
	header, err := s.protectedHeader()
	if err != nil {
		return 0, err
	}
	v, ok := coseMapLookup(header, headerLabelAlg)
	if !ok {
		return 0, errors.New("no algorithm in protected header")
	}
	return coseInt(v)
}

// CertificateChain returns the x5chain certificates, leaf first. The header
// value is either one DER byte string or an array of them.
func (s *Sign1) CertificateChain() ([]*x509.Certificate, error) {
	header, err := s.protectedHeader()
	if err != nil {
		return nil, err
	}
	v, ok := coseMapLookup(header, headerLabelX5Chain)
	if !ok {
		return nil, errors.New("no x5chain in protected header")
	}

	var ders [][]byte
	switch chain := v.(type) {
	case []byte:
		ders = [][]byte{chain}
	case []any:
		for _, entry := range chain {
			der, ok := entry.([]byte)
			if !ok {
				return nil, errors.New("malformed x5chain entry")
			}
			ders = append(ders, der)
		}
	default:
		return nil, errors.New("malformed x5chain header")
	}

	certs := make([]*x509.Certificate, 0, len(ders))
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse x5chain certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// sigStructure builds the Sig_structure for Signature1 with an empty
// external AAD.
func (s *Sign1) sigStructure() ([]byte, error) {
	protected := s.Protected
	if protected == nil {
		protected = []byte{}
	}
	return cbor.Marshal([]any{"Signature1", protected, []byte{}, s.Payload})
}

// VerifyES256 checks the signature with a P-256 key. The signature is the
// raw fixed width r||s form COSE mandates.
func (s *Sign1) VerifyES256(pub *ecdsa.PublicKey) error {
	if len(s.Signature) != 64 {
		return fmt.Errorf("signature must be 64 bytes, got %d", len(s.Signature))
	}
	data, err := s.sigStructure()
	if err != nil {
		return err
	}
	digest := sha256.Sum256(data)
	r := new(big.Int).SetBytes(s.Signature[:32])
	sv := new(big.Int).SetBytes(s.Signature[32:])
	if !ecdsa.Verify(pub, digest[:], r, sv) {
		return errors.New("COSE signature verification failed")
	}
	return nil
}

// SignES256 builds an encoded COSE_Sign1 over payload. The protected header
// carries ES256 and, when given, the signer chain leaf first.
func SignES256(payload []byte, key *ecdsa.PrivateKey, chain []*x509.Certificate) ([]byte, error) {
	header := map[any]any{int64(headerLabelAlg): int64(AlgES256)}
	switch len(chain) {
	case 0:
	case 1:
		header[int64(headerLabelX5Chain)] = chain[0].Raw
	default:
		ders := make([]any, 0, len(chain))
		for _, cert := range chain {
			ders = append(ders, cert.Raw)
		}
		header[int64(headerLabelX5Chain)] = ders
	}
	protected, err := cbor.Marshal(header)
	if err != nil {
		return nil, err
	}

	msg := &Sign1{Protected: protected, Payload: payload}
	data, err := msg.sigStructure()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(data)

	r, sv, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return nil, err
	}
	byteLen := (key.Curve.Params().BitSize + 7) / 8
	sig := make([]byte, 2*byteLen)
	r.FillBytes(sig[:byteLen])
	sv.FillBytes(sig[byteLen:])

	return cbor.Marshal(sign1Message{
		Protected:   protected,
		Unprotected: map[any]any{},
		Payload:     payload,
		Signature:   sig,
	})
}

// PublicKeyFromCOSEKey converts an EC2 P-256 COSE_Key to an ECDSA key.
func PublicKeyFromCOSEKey(key map[any]any) (*ecdsa.PublicKey, error) {
	kty, err := lookupInt(key, 1)
	if err != nil {
		return nil, errors.New("COSE_Key missing kty")
	}
	if kty != 2 {
		return nil, fmt.Errorf("unsupported COSE key type %d", kty)
	}
	crv, err := lookupInt(key, -1)
	if err != nil {
		return nil, errors.New("COSE_Key missing crv")
	}
	if crv != 1 {
		return nil, fmt.Errorf("unsupported COSE curve %d", crv)
	}

	x, err := lookupBytes(key, -2)
	if err != nil {
		return nil, errors.New("COSE_Key missing x coordinate")
	}
	y, err := lookupBytes(key, -3)
	if err != nil {
		return nil, errors.New("COSE_Key missing y coordinate")
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, errors.New("COSE_Key point not on curve")
	}
	return pub, nil
}

// COSEKeyFromPublic is the inverse of PublicKeyFromCOSEKey.
func COSEKeyFromPublic(pub *ecdsa.PublicKey) map[any]any {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	x := make([]byte, byteLen)
	y := make([]byte, byteLen)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)
	return map[any]any{
		int64(1):  int64(2),
		int64(-1): int64(1),
		int64(-2): x,
		int64(-3): y,
	}
}

// coseMapLookup reads a label from a decoded CBOR map. Non negative integer
// keys decode as uint64, negative ones as int64.
func coseMapLookup(m map[any]any, label int64) (any, bool) {
	if label >= 0 {
		if v, ok := m[uint64(label)]; ok {
			return v, true
		}
	}
	if v, ok := m[label]; ok {
		return v, true
	}
	return nil, false
}

func coseInt(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	}
	return 0, errors.New("value is not an integer")
}

func lookupInt(m map[any]any, label int64) (int64, error) {
	v, ok := coseMapLookup(m, label)
	if !ok {
		return 0, errors.New("label not present")
	}
	return coseInt(v)
}

func lookupBytes(m map[any]any, label int64) ([]byte, error) {
	v, ok := coseMapLookup(m, label)
	if !ok {
		return nil, errors.New("label not present")
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.New("value is not a byte string")
	}
	return b, nil
}

package didresolver

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/multiformats/go-multibase"
)

// Document is the subset of a DID document this module needs.
type Document struct {
	Context            any                  `json:"@context,omitempty"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	AssertionMethod    []json.RawMessage    `json:"assertionMethod,omitempty"`
	Authentication     []json.RawMessage    `json:"authentication,omitempty"`
}

// VerificationMethod carries key material either as a JWK or as a
// multibase encoded multicodec key.
type VerificationMethod struct {
	ID                 string          `json:"id"`
	Type               string          `json:"type"`
	Controller         string          `json:"controller,omitempty"`
	PublicKeyJwk       json.RawMessage `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string          `json:"publicKeyMultibase,omitempty"`
}

// SelectKey picks the verification method matching kid, or the first
// assertion method, or the first verification method, and returns its key.
func (d *Document) SelectKey(did string, kid string) (crypto.PublicKey, error) {
	vm, err := d.selectMethod(did, kid)
	if err != nil {
		return nil, err
	}
	return vm.publicKey()
}

func (d *Document) selectMethod(did string, kid string) (*VerificationMethod, error) {
	if kid != "" {
		for i := range d.VerificationMethod {
			vm := &d.VerificationMethod[i]
			if vm.ID == kid || vm.ID == did+kid {
				return vm, nil
			}
		}
		return nil, fmt.Errorf("no verification method with id %s", kid)
	}

	for _, raw := range d.AssertionMethod {
		// Assertion methods are either reference strings or embedded
		// verification methods.
		var ref string
		if err := json.Unmarshal(raw, &ref); err == nil {
			if vm := d.methodByID(ref); vm != nil {
				return vm, nil
			}
			continue
		}
		var vm VerificationMethod
		if err := json.Unmarshal(raw, &vm); err == nil && vm.ID != "" {
			return &vm, nil
		}
	}

	if len(d.VerificationMethod) > 0 {
		return &d.VerificationMethod[0], nil
	}
	return nil, errors.New("document has no usable verification method")
}

func (d *Document) methodByID(id string) *VerificationMethod {
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == id {
			return &d.VerificationMethod[i]
		}
	}
	return nil
}

func (vm *VerificationMethod) publicKey() (crypto.PublicKey, error) {
	switch {
	case len(vm.PublicKeyJwk) > 0:
		key, err := jwk.ParseKey(vm.PublicKeyJwk)
		if err != nil {
			return nil, fmt.Errorf("parse publicKeyJwk: %w", err)
		}
		var pub ecdsa.PublicKey
		if err := jwk.Export(key, &pub); err != nil {
			return nil, fmt.Errorf("export publicKeyJwk: %w", err)
		}
		return &pub, nil
	case vm.PublicKeyMultibase != "":
		_, data, err := multibase.Decode(vm.PublicKeyMultibase)
		if err != nil {
			return nil, fmt.Errorf("decode publicKeyMultibase: %w", err)
		}
		return publicKeyFromMulticodec(data)
	}
	return nil, errors.New("verification method carries no supported key material")
}

// publicKeyFromMulticodec understands the p256-pub multicodec prefix, the
// compressed point form used by did:key style documents.
func publicKeyFromMulticodec(data []byte) (crypto.PublicKey, error) {
	if len(data) > 2 && data[0] == 0x80 && data[1] == 0x24 {
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), data[2:])
		if x == nil {
			return nil, errors.New("malformed compressed P-256 point")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
	}
	return nil, errors.New("unsupported multicodec key prefix")
}

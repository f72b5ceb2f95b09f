// Package mdoc verifies ISO/IEC 18013-5 mobile documents: the issuer's
// COSE_Sign1 over the mobile security object, the document signer
// certificate chain, per element value digests, the device signature and
// the validity window.
package mdoc

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	// DocTypeMDL is the mobile driving licence document type.
	DocTypeMDL = "org.iso.18013.5.1.mDL"
	// NamespaceMDL is the primary mDL data element namespace.
	NamespaceMDL = "org.iso.18013.5.1"
	// DigestAlgorithmSHA256 is the only digest algorithm accepted.
	DigestAlgorithmSHA256 = "SHA-256"
)

// Document is one mdoc as presented by the device.
type Document struct {
	DocType      string       `cbor:"docType"`
	IssuerSigned IssuerSigned `cbor:"issuerSigned"`
	DeviceSigned DeviceSigned `cbor:"deviceSigned"`
}

// IssuerSigned carries the disclosed data elements and the issuer's
// COSE_Sign1 over the mobile security object.
type IssuerSigned struct {
	NameSpaces map[string][]IssuerSignedItem `cbor:"nameSpaces"`
	IssuerAuth []byte                        `cbor:"issuerAuth"`
}

// IssuerSignedItem is one disclosed data element together with the salt
// that blinds its digest.
type IssuerSignedItem struct {
	DigestID          uint64 `cbor:"digestID"`
	Random            []byte `cbor:"random"`
	ElementIdentifier string `cbor:"elementIdentifier"`
	ElementValue      any    `cbor:"elementValue"`
}

// DeviceSigned carries the holder device's proof of possession.
type DeviceSigned struct {
	NameSpaces map[string]any `cbor:"nameSpaces,omitempty"`
	DeviceAuth DeviceAuth     `cbor:"deviceAuth"`
}

type DeviceAuth struct {
	DeviceSignature []byte `cbor:"deviceSignature,omitempty"`
	DeviceMAC       []byte `cbor:"deviceMac,omitempty"`
}

// MobileSecurityObject is the issuer signed integrity anchor: digests over
// every data element, the device key and the validity window.
type MobileSecurityObject struct {
	Version         string                       `cbor:"version"`
	DigestAlgorithm string                       `cbor:"digestAlgorithm"`
	ValueDigests    map[string]map[uint64][]byte `cbor:"valueDigests"`
	DeviceKeyInfo   DeviceKeyInfo                `cbor:"deviceKeyInfo"`
	DocType         string                       `cbor:"docType"`
	ValidityInfo    ValidityInfo                 `cbor:"validityInfo"`
}

type DeviceKeyInfo struct {
	DeviceKey map[any]any `cbor:"deviceKey"`
}

type ValidityInfo struct {
	Signed     time.Time `cbor:"signed"`
	ValidFrom  time.Time `cbor:"validFrom"`
	ValidUntil time.Time `cbor:"validUntil"`
}

// ItemDigest computes the SHA-256 digest of an item's canonical encoding.
// The issuer computes digests the same way, so decode and re-encode is
// stable for the scalar element values mdocs carry.
func ItemDigest(item IssuerSignedItem) ([]byte, error) {
	encoded, err := cbor.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encode issuer signed item: %w", err)
	}
	digest := sha256.Sum256(encoded)
	return digest[:], nil
}

// FlattenClaims maps every disclosed element to "{namespace}/{identifier}".
func FlattenClaims(doc *Document) map[string]any {
	claims := make(map[string]any)
	for namespace, items := range doc.IssuerSigned.NameSpaces {
		for _, item := range items {
			claims[fmt.Sprintf("%s/%s", namespace, item.ElementIdentifier)] = item.ElementValue
		}
	}
	return claims
}

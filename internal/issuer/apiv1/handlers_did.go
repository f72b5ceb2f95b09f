package apiv1

import (
	"context"
	"encoding/json"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"dtw/pkg/didresolver"
	"dtw/pkg/vcerror"
)

// DIDDocument renders the issuer's did:web document with the active signing
// key as a JsonWebKey2020 verification method.
func (c *Client) DIDDocument(ctx context.Context) (*didresolver.Document, error) {
	_, span := c.tracer.Start(ctx, "apiv1:DIDDocument")
	defer span.End()

	keyJWK, err := c.publicJWK()
	if err != nil {
		c.log.Error(err, "DID document generation failed")
		return nil, vcerror.New(vcerror.ErrDIDFrontendDocumentError, "DID document generation failed")
	}

	did := c.cfg.Issuer.DID
	kidRef, err := json.Marshal(c.keyID)
	if err != nil {
		return nil, vcerror.New(vcerror.ErrDIDFrontendDocumentError, "DID document generation failed")
	}

	return &didresolver.Document{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/jws-2020/v1",
		},
		ID: did,
		VerificationMethod: []didresolver.VerificationMethod{
			{
				ID:           c.keyID,
				Type:         "JsonWebKey2020",
				Controller:   did,
				PublicKeyJwk: keyJWK,
			},
		},
		AssertionMethod: []json.RawMessage{kidRef},
		Authentication:  []json.RawMessage{kidRef},
	}, nil
}

// JWKS renders the issuer's public keys as a JWK set.
func (c *Client) JWKS(ctx context.Context) (json.RawMessage, error) {
	_, span := c.tracer.Start(ctx, "apiv1:JWKS")
	defer span.End()

	keyJWK, err := c.publicJWK()
	if err != nil {
		c.log.Error(err, "JWK set generation failed")
		return nil, vcerror.New(vcerror.ErrDIDFrontendDocumentError, "JWK set generation failed")
	}

	set := map[string]any{"keys": []json.RawMessage{keyJWK}}
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, vcerror.New(vcerror.ErrDIDFrontendDocumentError, "JWK set generation failed")
	}
	return raw, nil
}

func (c *Client) publicJWK() (json.RawMessage, error) {
	key, err := jwk.Import(c.signingKey.Public())
	if err != nil {
		return nil, err
	}
	if err := key.Set(jwk.KeyIDKey, c.keyID); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.ES256()); err != nil {
		return nil, err
	}
	return json.Marshal(key)
}

// Package vcjwt models W3C verifiable credentials and presentations in their
// JWT encoding and validates them with ES256.
package vcjwt

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeVerifiableCredential   = "VerifiableCredential"
	TypeVerifiablePresentation = "VerifiablePresentation"

	ContextCredentialsV1 = "https://www.w3.org/2018/credentials/v1"

	// StatusEntryType is the credentialStatus type issued and understood
	// by this module.
	StatusEntryType = "TokenStatusListEntry"
)

// CredentialStatus points a credential at one entry on a status list.
type CredentialStatus struct {
	ID                   string `json:"id,omitempty"`
	Type                 string `json:"type,omitempty"`
	StatusPurpose        string `json:"statusPurpose,omitempty"`
	StatusListIndex      string `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

// Index parses the decimal statusListIndex.
func (s *CredentialStatus) Index() (int, error) {
	return strconv.Atoi(s.StatusListIndex)
}

// VC is the credential body carried under the "vc" claim.
type VC struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer,omitempty"`
	IssuanceDate      string            `json:"issuanceDate,omitempty"`
	ExpirationDate    string            `json:"expirationDate,omitempty"`
	CredentialSubject map[string]any    `json:"credentialSubject"`
	CredentialStatus  *CredentialStatus `json:"credentialStatus,omitempty"`
}

// VP is the presentation body carried under the "vp" claim.
type VP struct {
	Context              []string `json:"@context"`
	Type                 []string `json:"type"`
	VerifiableCredential []string `json:"verifiableCredential"`
	Holder               string   `json:"holder,omitempty"`
}

// VCClaims is the full JWT payload of a credential.
type VCClaims struct {
	jwt.RegisteredClaims
	VC VC `json:"vc"`
}

// VPClaims is the full JWT payload of a presentation.
type VPClaims struct {
	jwt.RegisteredClaims
	VP VP `json:"vp"`
}

// HolderDID is the presentation holder: the registered subject, falling back
// to vp.holder.
func (c *VPClaims) HolderDID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.VP.Holder
}

// Nonce is the presentation's replay handle, carried as jti.
func (c *VPClaims) Nonce() string {
	return c.ID
}

// ClientID is the verifier the presentation was made for, carried as the
// first audience entry.
func (c *VPClaims) ClientID() string {
	if len(c.Audience) > 0 {
		return c.Audience[0]
	}
	return ""
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

package model

// CredentialState is the lifecycle state of an issued credential.
type CredentialState string

const (
	CredentialStateActive    CredentialState = "ACTIVE"
	CredentialStateSuspended CredentialState = "SUSPENDED"
	CredentialStateRevoked   CredentialState = "REVOKED"
)

// Presentation formats reported in validation results.
const (
	FormatJWTVC   = "jwt_vc"
	FormatMSOMDoc = "mso_mdoc"
)

// VCResult describes one successfully validated credential inside a
// presentation.
type VCResult struct {
	IssuerDID string         `json:"issuer_did" bson:"issuer_did"`
	Format    string         `json:"format" bson:"format"`
	Path      string         `json:"path" bson:"path"`
	Claims    map[string]any `json:"claims" bson:"claims"`
}

// VCRejection records one credential that was dropped from a presentation.
type VCRejection struct {
	Path    string `json:"path" bson:"path"`
	Code    int    `json:"code" bson:"code"`
	Message string `json:"message" bson:"message"`
}

// VerifyResult is the verdict of one presentation validation and of an
// OpenID4VP verification. A rejected credential lands in VCErrors and is
// omitted from VCs; the presentation itself stays valid.
type VerifyResult struct {
	VerifyResult     bool           `json:"verify_result" bson:"verify_result"`
	HolderDID        string         `json:"holder_did,omitempty" bson:"holder_did,omitempty"`
	Nonce            string         `json:"nonce,omitempty" bson:"nonce,omitempty"`
	ClientID         string         `json:"client_id,omitempty" bson:"client_id,omitempty"`
	VCs              []*VCResult    `json:"vcs,omitempty" bson:"vcs,omitempty"`
	VCErrors         []*VCRejection `json:"vc_errors,omitempty" bson:"vc_errors,omitempty"`
	Code             int            `json:"code,omitempty" bson:"code,omitempty"`
	Error            string         `json:"error,omitempty" bson:"error,omitempty"`
	ErrorDescription string         `json:"error_description,omitempty" bson:"error_description,omitempty"`
}

// Health is the reply of the service health endpoints.
type Health struct {
	ServiceName string `json:"service_name"`
	Status      string `json:"status"`
}

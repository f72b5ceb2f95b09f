// Package openid4vp models the OpenID for Verifiable Presentations
// exchange: presentation definitions, wallet authorization responses and
// the verifier side session state machine.
package openid4vp

// SessionState tracks one verification interaction.
type SessionState string

const (
	SessionStateNone                 SessionState = "NONE"
	SessionStateDefinitionRegistered SessionState = "DEFINITION_REGISTERED"
	SessionStateResponsePending      SessionState = "RESPONSE_PENDING"
	SessionStateVerified             SessionState = "VERIFIED"
	SessionStateRejected             SessionState = "REJECTED"
	SessionStateExpired              SessionState = "EXPIRED"
)

// PresentationDefinition tells the wallet which credentials to present.
type PresentationDefinition struct {
	ID               string            `json:"id" bson:"id"`
	Name             string            `json:"name,omitempty" bson:"name,omitempty"`
	Purpose          string            `json:"purpose,omitempty" bson:"purpose,omitempty"`
	InputDescriptors []InputDescriptor `json:"input_descriptors" bson:"input_descriptors"`
}

type InputDescriptor struct {
	ID          string       `json:"id" bson:"id"`
	Name        string       `json:"name,omitempty" bson:"name,omitempty"`
	Purpose     string       `json:"purpose,omitempty" bson:"purpose,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty" bson:"constraints,omitempty"`
}

type Constraints struct {
	LimitDisclosure string  `json:"limit_disclosure,omitempty" bson:"limit_disclosure,omitempty"`
	Fields          []Field `json:"fields,omitempty" bson:"fields,omitempty"`
}

type Field struct {
	Path   []string `json:"path" bson:"path"`
	Filter *Filter  `json:"filter,omitempty" bson:"filter,omitempty"`
}

type Filter struct {
	Type    string `json:"type,omitempty" bson:"type,omitempty"`
	Pattern string `json:"pattern,omitempty" bson:"pattern,omitempty"`
	Const   string `json:"const,omitempty" bson:"const,omitempty"`
}

// PresentationSubmission maps input descriptors to locations inside the
// authorization response.
type PresentationSubmission struct {
	ID            string       `json:"id" bson:"id"`
	DefinitionID  string       `json:"definition_id" bson:"definition_id"`
	DescriptorMap []Descriptor `json:"descriptor_map" bson:"descriptor_map"`
}

type Descriptor struct {
	ID         string      `json:"id" bson:"id"`
	Format     string      `json:"format" bson:"format"`
	Path       string      `json:"path" bson:"path"`
	PathNested *Descriptor `json:"path_nested,omitempty" bson:"path_nested,omitempty"`
}

// AuthorizationRequest is published for wallet scanning.
type AuthorizationRequest struct {
	ClientID               string                  `json:"client_id"`
	Nonce                  string                  `json:"nonce"`
	ResponseType           string                  `json:"response_type"`
	ResponseMode           string                  `json:"response_mode"`
	ResponseURI            string                  `json:"response_uri,omitempty"`
	PresentationDefinition *PresentationDefinition `json:"presentation_definition,omitempty"`
}

// AuthorizationResponse is the wallet's answer. A non empty Error means the
// wallet declined, per the OAuth error response convention.
type AuthorizationResponse struct {
	VPToken                string                  `json:"vp_token"`
	PresentationSubmission *PresentationSubmission `json:"presentation_submission,omitempty"`
	Nonce                  string                  `json:"nonce"`
	ClientID               string                  `json:"client_id"`
	State                  string                  `json:"state,omitempty"`
	Error                  string                  `json:"error,omitempty"`
	ErrorDescription       string                  `json:"error_description,omitempty"`
}

// IsSuccess reports whether the wallet answered without an OAuth error.
func (a *AuthorizationResponse) IsSuccess() bool {
	return a.Error == ""
}

package vcerror

// Error codes are stable API surface. Clients switch on the numeric code,
// never on the message text.
const (
	// Issuance, 61xxx.
	ErrCredInvalidCredentialRequest   = 61001
	ErrCredSignCredentialError        = 61002
	ErrCredPersistCredentialError     = 61003
	ErrCredStatusTransitionNotAllowed = 61006
	ErrCredCredentialNotFound         = 61010

	// Status list generation and publication, 62xxx.
	ErrStatusListGenerateError = 62001
	ErrStatusListSignError     = 62002
	ErrStatusListPublishError  = 62003

	// DID document generation, 63xxx.
	ErrDIDFrontendDocumentError = 63001

	// Datastore, 68xxx.
	ErrDatabaseOperationError  = 68001
	ErrDatabaseConnectionError = 68002

	// Issuer internals, 69xxx.
	ErrIssuerSystemError = 69001

	// Malformed or missing request input.
	ErrIllegalArgument = 70001

	// Presentation validation, 71xxx.
	ErrPresInvalidPresentationValidationRequest = 71001
	ErrPresValidateVPProofError                 = 71002
	ErrPresHolderPublicKeyInconsistent          = 71003
	ErrPresUnsupportedPresentationFormat        = 71004
	ErrMDLDigestMismatch                        = 71005

	// Credential validation, 72xxx.
	ErrCredValidateVCError        = 72001
	ErrCredValidateVCProofError   = 72002
	ErrCredValidateVCStatusError  = 72003
	ErrCredVCExpired              = 72004
	ErrCredVCNotYetValid          = 72005
	ErrCredVCTypeMissing          = 72006
	ErrCredVCClaimsInvalid        = 72007
	ErrCredVCUnsupportedAlgorithm = 72008

	// Status list validation, 73xxx.
	ErrStatusListValidationError    = 73001
	ErrStatusListProofError         = 73002
	ErrStatusListIndexOutOfRange    = 73003
	ErrStatusListUnknownStatusValue = 73004

	// DID resolution, 74xxx.
	ErrDIDFrontendQueryDID = 74001

	// Outbound fetches, 77xxx.
	ErrConnectionFetchError = 77001
	ErrConnectionTimeout    = 77002

	// Verifier session store, 78xxx.
	ErrDBReadSessionError  = 78001
	ErrDBWriteSessionError = 78002

	// Anything that has no better classification.
	ErrUnknown = 99999
)

// Package trust decides whether presented key material is trusted for a
// role. The mdoc verifier consults an Evaluator for every document signer
// chain; the default implementation verifies against a fixed root pool.
package trust

import (
	"context"
	"crypto/x509"
	"errors"
	"time"
)

type KeyType string

const (
	// KeyTypeX5C marks an X.509 certificate chain, leaf first.
	KeyTypeX5C KeyType = "x5c"
)

type Role string

const (
	// RoleCredentialIssuer is a party signing credentials or mdoc MSOs.
	RoleCredentialIssuer Role = "credential_issuer"
)

// EvaluationRequest describes one trust question.
type EvaluationRequest struct {
	// SubjectID identifies the party presenting the key, e.g. the leaf
	// certificate subject.
	SubjectID string
	KeyType   KeyType
	// Chain is the certificate chain to evaluate, leaf first.
	Chain []*x509.Certificate
	Role  Role
	// DocType narrows the question to one document type, e.g.
	// "org.iso.18013.5.1.mDL".
	DocType string
}

// Decision is the evaluator's verdict. Reason is safe to hand to clients.
type Decision struct {
	Trusted bool
	Reason  string
}

// Evaluator answers trust questions.
type Evaluator interface {
	Evaluate(ctx context.Context, req *EvaluationRequest) (*Decision, error)
}

// Static trusts any chain that verifies against its fixed root pool.
type Static struct {
	pool  *x509.CertPool
	clock func() time.Time
}

type StaticOption func(*Static)

// WithClock replaces the chain verification time source.
func WithClock(clock func() time.Time) StaticOption {
	return func(s *Static) {
		s.clock = clock
	}
}

func NewStatic(roots []*x509.Certificate, opts ...StaticOption) (*Static, error) {
	if len(roots) == 0 {
		return nil, errors.New("trust: no roots configured")
	}
	pool := x509.NewCertPool()
	for _, root := range roots {
		pool.AddCert(root)
	}
	s := &Static{pool: pool, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Static) Evaluate(_ context.Context, req *EvaluationRequest) (*Decision, error) {
	if req.KeyType != KeyTypeX5C {
		return nil, errors.New("trust: unsupported key type")
	}
	if len(req.Chain) == 0 {
		return &Decision{Trusted: false, Reason: "empty certificate chain"}, nil
	}

	intermediates := x509.NewCertPool()
	for _, cert := range req.Chain[1:] {
		intermediates.AddCert(cert)
	}

	_, err := req.Chain[0].Verify(x509.VerifyOptions{
		Roots:         s.pool,
		Intermediates: intermediates,
		CurrentTime:   s.clock(),
		// Leaf EKU carries a private mdoc OID, checked separately.
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return &Decision{Trusted: false, Reason: "certificate chain does not verify against trusted roots"}, nil
	}
	return &Decision{Trusted: true, Reason: "chain verifies against trusted root"}, nil
}

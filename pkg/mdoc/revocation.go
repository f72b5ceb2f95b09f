package mdoc

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/crypto/ocsp"
)

const maxOCSPResponseBytes = 64 << 10

// checkRevocation asks the OCSP responder named in the leaf certificate.
// A revoked answer fails hard; transport problems only log, since mdoc
// verification must keep working when the responder is unreachable.
func (v *Verifier) checkRevocation(ctx context.Context, chain []*x509.Certificate) error {
	leaf := chain[0]
	if len(leaf.OCSPServer) == 0 {
		return nil
	}
	issuer := v.issuerOf(leaf, chain)
	if issuer == nil {
		v.log.Info("ocsp skipped, issuer certificate unavailable", "subject", leaf.Subject.CommonName)
		return nil
	}

	status, err := v.fetchOCSPStatus(ctx, leaf, issuer)
	if err != nil {
		v.log.Info("ocsp lookup failed, continuing", "responder", leaf.OCSPServer[0], "err", err.Error())
		return nil
	}

	switch status {
	case ocsp.Good:
		return nil
	case ocsp.Revoked:
		return errors.New("document signer certificate is revoked")
	}
	return errors.New("document signer certificate status unknown")
}

// issuerOf finds the certificate that signed leaf: the next chain element
// when present, otherwise one of the configured roots.
func (v *Verifier) issuerOf(leaf *x509.Certificate, chain []*x509.Certificate) *x509.Certificate {
	if len(chain) > 1 && leaf.CheckSignatureFrom(chain[1]) == nil {
		return chain[1]
	}
	for _, root := range v.roots {
		if leaf.CheckSignatureFrom(root) == nil {
			return root
		}
	}
	return nil
}

func (v *Verifier) fetchOCSPStatus(ctx context.Context, leaf, issuer *x509.Certificate) (int, error) {
	reqDER, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return 0, fmt.Errorf("build ocsp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, leaf.OCSPServer[0], bytes.NewReader(reqDER))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ocsp responder returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOCSPResponseBytes))
	if err != nil {
		return 0, err
	}

	parsed, err := ocsp.ParseResponseForCert(body, leaf, issuer)
	if err != nil {
		return 0, fmt.Errorf("parse ocsp response: %w", err)
	}
	return parsed.Status, nil
}

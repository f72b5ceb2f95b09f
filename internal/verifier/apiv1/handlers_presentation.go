package apiv1

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"dtw/pkg/mdoc"
	"dtw/pkg/model"
	"dtw/pkg/openid4vp"
	"dtw/pkg/statuslist"
	"dtw/pkg/vcerror"
)

// Limits on one validation request, enforced before any parsing.
const (
	maxPresentations     = 100
	maxPresentationBytes = 1 << 20
	maxRequestBytes      = 10 << 20
)

// PresentationValidationRequest carries the presentations to validate, each
// either a compact JWS or a CBOR mdoc (optionally base64).
type PresentationValidationRequest struct {
	Presentations []string `json:"presentations"`
}

// PresentationValidation validates a batch of presentations. Blank entries
// are skipped; a rejected credential is omitted from its presentation's
// result; a presentation level failure fails the whole call.
//
//	@Summary		Validate presentations
//	@ID				presentation-validation
//	@Description	Validates a batch of verifiable presentations, JWT or mdoc
//	@Tags			verifier
//	@Accept			json
//	@Produce		json
//	@Success		200	{array}		model.VerifyResult
//	@Failure		400	{object}	vcerror.VCError
//	@Param			req	body		[]string	true	"presentations"
//	@Router			/presentation/validation [post]
func (c *Client) PresentationValidation(ctx context.Context, req *PresentationValidationRequest) ([]*model.VerifyResult, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:PresentationValidation")
	defer span.End()

	return c.validatePresentations(ctx, req.Presentations)
}

func (c *Client) validatePresentations(ctx context.Context, presentations []string) ([]*model.VerifyResult, error) {
	if err := checkPresentationLimits(presentations); err != nil {
		return nil, err
	}

	results := make([]*model.VerifyResult, 0, len(presentations))
	for _, raw := range presentations {
		if ctx.Err() != nil {
			return nil, vcerror.Cancelled()
		}
		presentation := strings.TrimSpace(raw)
		if presentation == "" {
			continue
		}
		result, err := c.validatePresentation(ctx, presentation)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func checkPresentationLimits(presentations []string) error {
	if len(presentations) > maxPresentations {
		return vcerror.Newf(vcerror.ErrPresInvalidPresentationValidationRequest, "too many presentations, at most %d allowed", maxPresentations)
	}
	total := 0
	for _, p := range presentations {
		if len(p) > maxPresentationBytes {
			return vcerror.New(vcerror.ErrPresInvalidPresentationValidationRequest, "presentation exceeds the size limit")
		}
		total += len(p)
		if total > maxRequestBytes {
			return vcerror.New(vcerror.ErrPresInvalidPresentationValidationRequest, "request exceeds the aggregate size limit")
		}
	}
	return nil
}

// validatePresentation routes one presentation by detected format.
func (c *Client) validatePresentation(ctx context.Context, presentation string) (*model.VerifyResult, error) {
	if strings.HasPrefix(presentation, "eyJ") {
		return c.validateJWTPresentation(ctx, presentation)
	}
	if docBytes, ok := mdocBytes(presentation); ok {
		return c.validateMDocPresentation(ctx, docBytes)
	}
	return nil, vcerror.New(vcerror.ErrPresUnsupportedPresentationFormat, "unsupported presentation format")
}

// mdocBytes recognises a CBOR document, raw or base64 wrapped, by its
// leading byte: a map or tag major type.
func mdocBytes(presentation string) ([]byte, bool) {
	if isCBORPrefix(presentation[0]) {
		return []byte(presentation), true
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(presentation)
		if err == nil && len(decoded) > 0 && isCBORPrefix(decoded[0]) {
			return decoded, true
		}
	}
	return nil, false
}

func isCBORPrefix(b byte) bool {
	return (b >= 0xa0 && b <= 0xbf) || (b >= 0xc0 && b <= 0xdf)
}

// validateJWTPresentation verifies the presentation envelope and then every
// embedded credential in input order. Credential failures omit the
// credential and record a rejection; the presentation stays valid.
func (c *Client) validateJWTPresentation(ctx context.Context, token string) (*model.VerifyResult, error) {
	vp, err := c.validator.ValidateVP(ctx, token)
	if err != nil {
		return nil, err
	}
	holder := vp.HolderDID()

	result := &model.VerifyResult{
		VerifyResult: true,
		HolderDID:    holder,
		Nonce:        vp.Nonce(),
		ClientID:     vp.ClientID(),
	}

	for i, vcToken := range vp.VP.VerifiableCredential {
		if ctx.Err() != nil {
			return nil, vcerror.Cancelled()
		}
		path := openid4vp.VCPath(i)

		vc, err := c.validator.ValidateVC(ctx, vcToken)
		if err != nil {
			c.rejectVC(result, path, err)
			continue
		}

		subject := vc.Subject
		if subject == "" {
			subject, _ = vc.VC.CredentialSubject["id"].(string)
		}
		if subject != holder {
			c.rejectVC(result, path, vcerror.New(vcerror.ErrPresHolderPublicKeyInconsistent, "credential subject does not match presentation holder"))
			continue
		}

		issuerDID := vc.Issuer
		if issuerDID == "" {
			issuerDID = vc.VC.Issuer
		}

		if vc.VC.CredentialStatus != nil {
			status, err := c.statusClient.Get(ctx, vc.VC.CredentialStatus, issuerDID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, vcerror.Cancelled()
				}
				c.log.Debug("credential status check failed", "path", path, "err", err.Error())
				c.rejectVC(result, path, vcerror.New(vcerror.ErrCredValidateVCStatusError, "credential status check failed"))
				continue
			}
			if status != statuslist.StatusActive {
				c.rejectVC(result, path, vcerror.Newf(vcerror.ErrCredValidateVCStatusError, "credential status is %s", status))
				continue
			}
		}

		result.VCs = append(result.VCs, &model.VCResult{
			IssuerDID: issuerDID,
			Format:    model.FormatJWTVC,
			Path:      path,
			Claims:    vc.VC.CredentialSubject,
		})
	}

	return result, nil
}

// rejectVC records one dropped credential on the result.
func (c *Client) rejectVC(result *model.VerifyResult, path string, err error) {
	vcErr := vcerror.FromError(err)
	result.VCErrors = append(result.VCErrors, &model.VCRejection{
		Path:    path,
		Code:    vcErr.Code,
		Message: vcErr.Message,
	})
}

// validateMDocPresentation delegates to the mdoc pipeline. A digest mismatch
// keeps its descriptive message; every other failure is sanitized.
func (c *Client) validateMDocPresentation(ctx context.Context, docBytes []byte) (*model.VerifyResult, error) {
	if c.mdocVerifier == nil {
		return nil, vcerror.New(vcerror.ErrPresUnsupportedPresentationFormat, "mdoc presentations are not enabled")
	}

	res, err := c.mdocVerifier.Verify(ctx, docBytes)
	if err != nil {
		if errors.Is(err, mdoc.ErrDigestMismatch) {
			return nil, vcerror.New(vcerror.ErrMDLDigestMismatch, err.Error())
		}
		if ctx.Err() != nil {
			return nil, vcerror.Cancelled()
		}
		c.log.Debug("mdoc verification failed", "stage", string(res.Stage), "err", err.Error())
		return nil, vcerror.New(vcerror.ErrPresValidateVPProofError, vcerror.MsgVPValidationFailed)
	}

	return &model.VerifyResult{
		VerifyResult: true,
		VCs: []*model.VCResult{{
			IssuerDID: res.Issuer,
			Format:    model.FormatMSOMDoc,
			Path:      "$",
			Claims:    res.Claims,
		}},
	}, nil
}

// mergeResults collapses a multi token validation into one verdict. Holder,
// nonce and client id come from the first presentation that carries them.
func mergeResults(results []*model.VerifyResult) *model.VerifyResult {
	if len(results) == 1 {
		return results[0]
	}
	merged := &model.VerifyResult{VerifyResult: true}
	for _, r := range results {
		if merged.HolderDID == "" {
			merged.HolderDID = r.HolderDID
		}
		if merged.Nonce == "" {
			merged.Nonce = r.Nonce
		}
		if merged.ClientID == "" {
			merged.ClientID = r.ClientID
		}
		merged.VCs = append(merged.VCs, r.VCs...)
		merged.VCErrors = append(merged.VCErrors, r.VCErrors...)
	}
	return merged
}

package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lithammer/shortuuid/v4"
	"github.com/skip2/go-qrcode"

	"dtw/internal/verifier/db"
	"dtw/pkg/helpers"
	"dtw/pkg/model"
	"dtw/pkg/openid4vp"
	"dtw/pkg/vcerror"
)

// Definition registration modes.
const (
	DefinitionModeSave   = "SAVE"
	DefinitionModeDelete = "DELETE"
)

// ModifyPresentationDefinitionRequest registers or removes the presentation
// definition for one (client_id, nonce) session.
type ModifyPresentationDefinitionRequest struct {
	Mode                   string                            `json:"mode" validate:"required"`
	ClientID               string                            `json:"client_id" validate:"required"`
	Nonce                  string                            `json:"nonce" validate:"required"`
	PresentationDefinition *openid4vp.PresentationDefinition `json:"presentation_definition,omitempty"`
}

// ModifyPresentationDefinitionReply reports the session after the change.
type ModifyPresentationDefinitionReply struct {
	SessionID string                 `json:"session_id,omitempty"`
	State     openid4vp.SessionState `json:"state"`
}

// ModifyPresentationDefinition creates or deletes a verification session.
// SAVE must happen before the wallet's verify call; DELETE is idempotent.
//
//	@Summary		Register presentation definition
//	@ID				oidvp-definition
//	@Description	Registers (SAVE) or removes (DELETE) the presentation definition for one client_id and nonce pair
//	@Tags			verifier
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	ModifyPresentationDefinitionReply
//	@Failure		400	{object}	vcerror.VCError
//	@Param			req	body		ModifyPresentationDefinitionRequest	true	"request"
//	@Router			/oidvp/definition [post]
func (c *Client) ModifyPresentationDefinition(ctx context.Context, req *ModifyPresentationDefinitionRequest) (*ModifyPresentationDefinitionReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:ModifyPresentationDefinition")
	defer span.End()

	if err := helpers.Check(ctx, c.cfg, req, c.log); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "mode, client_id and nonce are required")
	}

	unlock := c.sessionLocks.Lock(sessionKey(req.ClientID, req.Nonce))
	defer unlock()

	switch strings.ToUpper(req.Mode) {
	case DefinitionModeSave:
		if req.PresentationDefinition == nil {
			return nil, vcerror.New(vcerror.ErrIllegalArgument, "presentation_definition is required for SAVE")
		}
		now := c.clock().UTC()
		doc := &db.SessionDoc{
			SessionID:              shortuuid.New(),
			ClientID:               req.ClientID,
			Nonce:                  req.Nonce,
			State:                  openid4vp.SessionStateDefinitionRegistered,
			PresentationDefinition: req.PresentationDefinition,
			CreatedAt:              now,
			UpdatedAt:              now,
			ExpiresAt:              now.Add(c.cfg.Verifier.SessionTTL),
		}
		if err := c.sessions.Save(ctx, doc); err != nil {
			c.log.Error(err, "session save failed", "session_id", doc.SessionID)
			return nil, vcerror.New(vcerror.ErrDBWriteSessionError, "session write failed")
		}
		c.log.Info("presentation definition registered", "session_id", doc.SessionID, "client_id", req.ClientID)
		return &ModifyPresentationDefinitionReply{SessionID: doc.SessionID, State: doc.State}, nil

	case DefinitionModeDelete:
		if err := c.sessions.Delete(ctx, req.ClientID, req.Nonce); err != nil && !errors.Is(err, db.ErrNotFound) {
			c.log.Error(err, "session delete failed", "client_id", req.ClientID)
			return nil, vcerror.New(vcerror.ErrDBWriteSessionError, "session write failed")
		}
		return &ModifyPresentationDefinitionReply{State: openid4vp.SessionStateNone}, nil
	}

	return nil, vcerror.Newf(vcerror.ErrIllegalArgument, "unknown mode %q", req.Mode)
}

// VerifyRequest is the wallet's authorization response. A wallet initiated
// flow may carry the presentation definition inline instead of a prior SAVE;
// the session is then created and settled in one call.
type VerifyRequest struct {
	openid4vp.AuthorizationResponse
	PresentationDefinition *openid4vp.PresentationDefinition `json:"presentation_definition,omitempty"`
}

// Verify settles one OpenID4VP session from the wallet's authorization
// response. The verdict is returned and recorded on the session; a crypto
// failure rejects the session, it does not fail the HTTP exchange.
//
//	@Summary		Verify authorization response
//	@ID				oidvp-verify
//	@Description	Validates the wallet's vp_token against the session and records the verdict
//	@Tags			verifier
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	model.VerifyResult
//	@Failure		400	{object}	vcerror.VCError
//	@Param			req	body		VerifyRequest	true	"authorization response"
//	@Router			/oidvp/verify [post]
func (c *Client) Verify(ctx context.Context, req *VerifyRequest) (*model.VerifyResult, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Verify")
	defer span.End()

	if req.ClientID == "" || req.Nonce == "" {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "client_id and nonce are required")
	}

	unlock := c.sessionLocks.Lock(sessionKey(req.ClientID, req.Nonce))
	defer unlock()

	now := c.clock().UTC()
	doc, err := c.sessions.Get(ctx, req.ClientID, req.Nonce)
	switch {
	case errors.Is(err, db.ErrNotFound):
		if req.PresentationDefinition == nil {
			return nil, vcerror.New(vcerror.ErrIllegalArgument, "session not found")
		}
		doc = &db.SessionDoc{
			SessionID:              shortuuid.New(),
			ClientID:               req.ClientID,
			Nonce:                  req.Nonce,
			State:                  openid4vp.SessionStateDefinitionRegistered,
			PresentationDefinition: req.PresentationDefinition,
			CreatedAt:              now,
			UpdatedAt:              now,
			ExpiresAt:              now.Add(c.cfg.Verifier.SessionTTL),
		}
	case err != nil:
		c.log.Error(err, "session lookup failed", "client_id", req.ClientID)
		return nil, vcerror.New(vcerror.ErrDBReadSessionError, "session read failed")
	}

	if doc.Expired(now) {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session expired")
	}
	if doc.State == openid4vp.SessionStateVerified || doc.State == openid4vp.SessionStateRejected {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session already completed")
	}

	// The wallet declined; record its OAuth error verbatim.
	if !req.IsSuccess() {
		verdict := &model.VerifyResult{
			Error:            req.Error,
			ErrorDescription: req.ErrorDescription,
		}
		return c.settleSession(ctx, doc, openid4vp.SessionStateRejected, verdict)
	}

	tokens, err := c.submissionTokens(req)
	if err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, err.Error())
	}

	results, err := c.validatePresentations(ctx, tokens)
	if err != nil {
		if ctx.Err() != nil {
			return nil, vcerror.Cancelled()
		}
		vcErr := vcerror.FromError(err)
		verdict := &model.VerifyResult{Code: vcErr.Code, Error: vcErr.Message}
		return c.settleSession(ctx, doc, openid4vp.SessionStateRejected, verdict)
	}
	if len(results) == 0 {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "authorization response carries no verifiable presentation")
	}

	// Presentations must be bound to this very exchange.
	for _, r := range results {
		if r.Nonce != "" && r.Nonce != doc.Nonce {
			vcErr := vcerror.New(vcerror.ErrPresHolderPublicKeyInconsistent, "presentation nonce does not match the session")
			verdict := &model.VerifyResult{Code: vcErr.Code, Error: vcErr.Message}
			return c.settleSession(ctx, doc, openid4vp.SessionStateRejected, verdict)
		}
		if r.ClientID != "" && r.ClientID != doc.ClientID {
			vcErr := vcerror.New(vcerror.ErrPresHolderPublicKeyInconsistent, "presentation audience does not match the session")
			verdict := &model.VerifyResult{Code: vcErr.Code, Error: vcErr.Message}
			return c.settleSession(ctx, doc, openid4vp.SessionStateRejected, verdict)
		}
	}

	verdict := mergeResults(results)
	verdict.Nonce = doc.Nonce
	verdict.ClientID = doc.ClientID

	verdict, err = c.settleSession(ctx, doc, openid4vp.SessionStateVerified, verdict)
	if err != nil {
		return nil, err
	}
	c.publishPresented(ctx, verdict)
	c.log.Info("session verified", "session_id", doc.SessionID, "holder_did", verdict.HolderDID)
	return verdict, nil
}

// submissionTokens extracts the presentation tokens the descriptor map
// points at from the decoded authorization response.
func (c *Client) submissionTokens(req *VerifyRequest) ([]string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("authorization response not encodable")
	}
	document := map[string]any{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("authorization response not decodable")
	}
	return openid4vp.TokensFromSubmission(document, req.PresentationSubmission)
}

// settleSession records the terminal state and verdict of one session.
func (c *Client) settleSession(ctx context.Context, doc *db.SessionDoc, state openid4vp.SessionState, verdict *model.VerifyResult) (*model.VerifyResult, error) {
	doc.State = state
	doc.Verdict = verdict
	doc.UpdatedAt = c.clock().UTC()
	if err := c.sessions.Save(ctx, doc); err != nil {
		c.log.Error(err, "session save failed", "session_id", doc.SessionID)
		return nil, vcerror.New(vcerror.ErrDBWriteSessionError, "session write failed")
	}
	return verdict, nil
}

// GetVerifyResultRequest names the session a result poll asks about.
type GetVerifyResultRequest struct {
	ClientID string `json:"client_id" form:"client_id" validate:"required"`
	Nonce    string `json:"nonce" form:"nonce" validate:"required"`
}

// GetVerifyResultReply carries the session state and, once settled, the
// verdict flattened alongside it.
type GetVerifyResultReply struct {
	State openid4vp.SessionState `json:"state"`
	*model.VerifyResult
}

// GetVerifyResult polls one session. Polling an expired session reads
// EXPIRED for the retention window instead of session not found.
//
//	@Summary		Poll verification result
//	@ID				oidvp-result
//	@Description	Returns the session state and the recorded verdict
//	@Tags			verifier
//	@Produce		json
//	@Success		200	{object}	GetVerifyResultReply
//	@Failure		400	{object}	vcerror.VCError
//	@Param			client_id	query	string	true	"client id"
//	@Param			nonce		query	string	true	"nonce"
//	@Router			/oidvp/result [get]
func (c *Client) GetVerifyResult(ctx context.Context, req *GetVerifyResultRequest) (*GetVerifyResultReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:GetVerifyResult")
	defer span.End()

	if err := helpers.Check(ctx, c.cfg, req, c.log); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "client_id and nonce are required")
	}

	doc, err := c.sessions.Get(ctx, req.ClientID, req.Nonce)
	if errors.Is(err, db.ErrNotFound) {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session not found")
	}
	if err != nil {
		c.log.Error(err, "session lookup failed", "client_id", req.ClientID)
		return nil, vcerror.New(vcerror.ErrDBReadSessionError, "session read failed")
	}

	if doc.Expired(c.clock()) {
		return &GetVerifyResultReply{State: openid4vp.SessionStateExpired}, nil
	}
	return &GetVerifyResultReply{State: doc.State, VerifyResult: doc.Verdict}, nil
}

// AuthorizationRequestQuery names the session an authorization request is
// served for.
type AuthorizationRequestQuery struct {
	ClientID string `json:"client_id" form:"client_id" validate:"required"`
	Nonce    string `json:"nonce" form:"nonce" validate:"required"`
}

// AuthorizationRequestReply is the scannable authorization request.
type AuthorizationRequestReply struct {
	AuthorizationRequest *openid4vp.AuthorizationRequest `json:"authorization_request"`
	QR                   *openid4vp.QR                   `json:"qr"`
}

// GetAuthorizationRequest serves the OpenID4VP authorization request for a
// registered session, plus a QR rendering of the openid4vp:// URI for wallet
// scanning, and moves the session to RESPONSE_PENDING.
//
//	@Summary		Fetch authorization request
//	@ID				oidvp-request
//	@Description	Returns the authorization request and QR code for one registered session
//	@Tags			verifier
//	@Produce		json
//	@Success		200	{object}	AuthorizationRequestReply
//	@Failure		400	{object}	vcerror.VCError
//	@Param			client_id	query	string	true	"client id"
//	@Param			nonce		query	string	true	"nonce"
//	@Router			/oidvp/request [get]
func (c *Client) GetAuthorizationRequest(ctx context.Context, req *AuthorizationRequestQuery) (*AuthorizationRequestReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:GetAuthorizationRequest")
	defer span.End()

	if err := helpers.Check(ctx, c.cfg, req, c.log); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "client_id and nonce are required")
	}

	unlock := c.sessionLocks.Lock(sessionKey(req.ClientID, req.Nonce))
	defer unlock()

	doc, err := c.sessions.Get(ctx, req.ClientID, req.Nonce)
	if errors.Is(err, db.ErrNotFound) {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session not found")
	}
	if err != nil {
		c.log.Error(err, "session lookup failed", "client_id", req.ClientID)
		return nil, vcerror.New(vcerror.ErrDBReadSessionError, "session read failed")
	}
	if doc.Expired(c.clock()) {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session expired")
	}
	if doc.State != openid4vp.SessionStateDefinitionRegistered && doc.State != openid4vp.SessionStateResponsePending {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "session already completed")
	}

	request := &openid4vp.AuthorizationRequest{
		ClientID:               doc.ClientID,
		Nonce:                  doc.Nonce,
		ResponseType:           "vp_token",
		ResponseMode:           "direct_post",
		ResponseURI:            c.externalURL("/api/oidvp/verify"),
		PresentationDefinition: doc.PresentationDefinition,
	}

	requestURI := c.externalURL(fmt.Sprintf("/api/oidvp/request?client_id=%s&nonce=%s", url.QueryEscape(doc.ClientID), url.QueryEscape(doc.Nonce)))
	qrURI := fmt.Sprintf("openid4vp://authorize?client_id=%s&request_uri=%s", url.QueryEscape(doc.ClientID), url.QueryEscape(requestURI))
	qr, err := openid4vp.GenerateQR(qrURI, requestURI, qrcode.Medium, 256)
	if err != nil {
		c.log.Error(err, "qr encoding failed", "session_id", doc.SessionID)
		return nil, vcerror.New(vcerror.ErrUnknown, vcerror.MsgInternalError)
	}

	if doc.State == openid4vp.SessionStateDefinitionRegistered {
		doc.State = openid4vp.SessionStateResponsePending
		doc.UpdatedAt = c.clock().UTC()
		if err := c.sessions.Save(ctx, doc); err != nil {
			c.log.Error(err, "session save failed", "session_id", doc.SessionID)
			return nil, vcerror.New(vcerror.ErrDBWriteSessionError, "session write failed")
		}
	}

	return &AuthorizationRequestReply{AuthorizationRequest: request, QR: qr}, nil
}

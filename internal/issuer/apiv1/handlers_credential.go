package apiv1

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dtw/internal/issuer/db"
	"dtw/pkg/helpers"
	"dtw/pkg/messagebroker"
	"dtw/pkg/model"
	"dtw/pkg/statuslist"
	"dtw/pkg/vcerror"
	"dtw/pkg/vcjwt"
)

// GenerateRequest asks for one credential to be issued.
type GenerateRequest struct {
	IssuerDID         string         `json:"issuer_did" validate:"required"`
	CredentialType    string         `json:"credential_type" validate:"required"`
	HolderDID         string         `json:"holder_did"`
	CredentialSubject map[string]any `json:"credential_subject" validate:"required"`
}

// GenerateReply carries the signed credential and its handles.
type GenerateReply struct {
	CID        string `json:"cid"`
	Credential string `json:"credential"`
	Nonce      string `json:"nonce"`
}

// Generate signs one credential, anchors it on a status list and persists
// the record.
//
//	@Summary		Issue credential
//	@ID				generate-credential
//	@Description	Signs one credential, anchors it on a status list and persists the record
//	@Tags			issuer
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	GenerateReply
//	@Failure		400	{object}	vcerror.VCError
//	@Param			req	body		GenerateRequest	true	"request"
//	@Router			/credential [post]
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Generate")
	defer span.End()

	if err := helpers.Check(ctx, c.cfg, req, c.log); err != nil {
		return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, "issuer_did, credential_type and credential_subject are required")
	}
	if len(req.CredentialSubject) == 0 {
		return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, "credential_subject must not be empty")
	}
	holder := req.HolderDID
	if holder == "" {
		holder, _ = req.CredentialSubject["id"].(string)
	}
	if holder == "" {
		return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, "holder_did or credential_subject.id is required")
	}
	if err := validateSubject(req.CredentialSubject); err != nil {
		return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, err.Error())
	}
	if c.subjectSchema != nil {
		if result := c.subjectSchema.Validate(req.CredentialSubject); !result.IsValid() {
			return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, "credential_subject does not conform to the credential schema")
		}
	}

	listID, index, err := c.statusListStore.Allocate(ctx, c.cfg.Issuer.StatusList.Size)
	if err != nil {
		c.log.Error(err, "status list allocation failed")
		return nil, vcerror.New(vcerror.ErrStatusListGenerateError, "status list allocation failed")
	}
	listURL := c.statusListURL(listID)

	cid := uuid.NewString()
	nonce := uuid.NewString()
	now := c.clock().UTC()
	expires := now.Add(c.cfg.Issuer.CredentialTTL)

	subject := make(map[string]any, len(req.CredentialSubject)+1)
	for k, v := range req.CredentialSubject {
		subject[k] = v
	}
	if _, ok := subject["id"]; !ok {
		subject["id"] = holder
	}

	claims := &vcjwt.VCClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    req.IssuerDID,
			Subject:   holder,
			ID:        cid,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		VC: vcjwt.VC{
			Context:           []string{vcjwt.ContextCredentialsV1},
			Type:              []string{vcjwt.TypeVerifiableCredential, req.CredentialType},
			Issuer:            req.IssuerDID,
			IssuanceDate:      now.Format(time.RFC3339),
			ExpirationDate:    expires.Format(time.RFC3339),
			CredentialSubject: subject,
			CredentialStatus: &vcjwt.CredentialStatus{
				ID:                   fmt.Sprintf("%s#%d", listURL, index),
				Type:                 vcjwt.StatusEntryType,
				StatusPurpose:        "revocation",
				StatusListIndex:      strconv.Itoa(index),
				StatusListCredential: listURL,
			},
		},
	}

	signed, err := vcjwt.SignVC(claims, c.signingKey, c.keyID)
	if err != nil {
		c.log.Error(err, "credential signing failed", "cid", cid)
		return nil, vcerror.New(vcerror.ErrCredSignCredentialError, "credential signing failed")
	}

	// The list a credential points at must resolve from the moment the
	// credential exists.
	if err := c.ensurePublished(ctx, listID); err != nil {
		return nil, err
	}

	doc := &db.CredentialDoc{
		CID:             cid,
		IssuerDID:       req.IssuerDID,
		HolderDID:       holder,
		CredentialType:  req.CredentialType,
		Credential:      signed,
		Nonce:           nonce,
		State:           model.CredentialStateActive,
		StatusListID:    listID,
		StatusListIndex: index,
		IssuedAt:        now,
		ExpiresAt:       expires,
	}
	if err := c.credentialStore.Save(ctx, doc); err != nil {
		c.log.Error(err, "credential persist failed", "cid", cid)
		return nil, vcerror.New(vcerror.ErrCredPersistCredentialError, "credential persist failed")
	}

	c.publishActivity(ctx, messagebroker.ActivityIssued, doc)
	c.log.Info("credential issued", "cid", cid, "type", req.CredentialType)

	return &GenerateReply{CID: cid, Credential: signed, Nonce: nonce}, nil
}

// QueryRequest locates one credential by cid or collect nonce.
type QueryRequest struct {
	CID   string `json:"cid" form:"cid"`
	Nonce string `json:"nonce" form:"nonce"`
}

// Query returns the stored record for one credential.
//
//	@Summary		Query credential
//	@ID				query-credential
//	@Description	Returns the stored record for one credential, looked up by cid or nonce
//	@Tags			issuer
//	@Produce		json
//	@Success		200	{object}	db.CredentialDoc
//	@Failure		404	{object}	vcerror.VCError
//	@Param			cid		query	string	false	"credential id"
//	@Param			nonce	query	string	false	"collect nonce"
//	@Router			/credential/query [get]
func (c *Client) Query(ctx context.Context, req *QueryRequest) (*db.CredentialDoc, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Query")
	defer span.End()

	if req.CID == "" && req.Nonce == "" {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "cid or nonce is required")
	}

	var doc *db.CredentialDoc
	var err error
	if req.CID != "" {
		doc, err = c.credentialStore.GetByCID(ctx, req.CID)
	} else {
		doc, err = c.credentialStore.GetByNonce(ctx, req.Nonce)
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, vcerror.New(vcerror.ErrCredCredentialNotFound, "credential not found")
	}
	if err != nil {
		c.log.Error(err, "credential lookup failed")
		return nil, vcerror.New(vcerror.ErrDatabaseOperationError, "credential lookup failed")
	}
	return doc, nil
}

// ChangeStateRequest names the credential a lifecycle transition applies to.
type ChangeStateRequest struct {
	CID string `json:"cid" form:"cid" validate:"required"`
}

// ChangeStateReply reports the state after the transition.
type ChangeStateReply struct {
	CID   string                `json:"cid"`
	State model.CredentialState `json:"state"`
}

// Revoke permanently invalidates one credential. Revocation is terminal and
// repeat calls are no-ops.
//
//	@Summary		Revoke credential
//	@ID				revoke-credential
//	@Description	Marks the credential revoked on its status list, permanently
//	@Tags			issuer
//	@Produce		json
//	@Success		200	{object}	ChangeStateReply
//	@Failure		400	{object}	vcerror.VCError
//	@Param			cid	query		string	true	"credential id"
//	@Router			/credential/revoke [put]
func (c *Client) Revoke(ctx context.Context, req *ChangeStateRequest) (*ChangeStateReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Revoke")
	defer span.End()

	return c.changeState(ctx, req, model.CredentialStateRevoked, statuslist.StatusRevoked, messagebroker.ActivityRevoked)
}

// Suspend temporarily invalidates one credential.
func (c *Client) Suspend(ctx context.Context, req *ChangeStateRequest) (*ChangeStateReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Suspend")
	defer span.End()

	return c.changeState(ctx, req, model.CredentialStateSuspended, statuslist.StatusSuspended, "")
}

// Recover lifts a suspension.
func (c *Client) Recover(ctx context.Context, req *ChangeStateRequest) (*ChangeStateReply, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Recover")
	defer span.End()

	return c.changeState(ctx, req, model.CredentialStateActive, statuslist.StatusActive, "")
}

func (c *Client) changeState(ctx context.Context, req *ChangeStateRequest, target model.CredentialState, bit statuslist.Status, activity messagebroker.ActivityType) (*ChangeStateReply, error) {
	if err := helpers.Check(ctx, c.cfg, req, c.log); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "cid is required")
	}

	// First read locates the list, second read under the list lock decides
	// the transition, so a concurrent revoke cannot be overwritten.
	doc, err := c.credentialStore.GetByCID(ctx, req.CID)
	if err != nil {
		return nil, c.lookupError(err)
	}

	unlock := c.listLocks.Lock(doc.StatusListID)
	defer unlock()

	doc, err = c.credentialStore.GetByCID(ctx, req.CID)
	if err != nil {
		return nil, c.lookupError(err)
	}

	if doc.State == target {
		return &ChangeStateReply{CID: doc.CID, State: doc.State}, nil
	}
	if doc.State == model.CredentialStateRevoked {
		return nil, vcerror.New(vcerror.ErrCredStatusTransitionNotAllowed, "credential is revoked, no further transitions allowed")
	}

	list, err := c.statusListStore.Get(ctx, doc.StatusListID)
	if err != nil {
		c.log.Error(err, "status list lookup failed", "list_id", doc.StatusListID)
		return nil, vcerror.New(vcerror.ErrDatabaseOperationError, "status list lookup failed")
	}
	bits, err := statuslist.FromBytes(list.Bits, list.Size)
	if err != nil {
		c.log.Error(err, "status list decode failed", "list_id", list.ListID)
		return nil, vcerror.New(vcerror.ErrStatusListGenerateError, "status list update failed")
	}
	if err := bits.Set(doc.StatusListIndex, bit); err != nil {
		c.log.Error(err, "status list entry update failed", "list_id", list.ListID, "index", doc.StatusListIndex)
		return nil, vcerror.New(vcerror.ErrStatusListGenerateError, "status list update failed")
	}

	signed, err := c.generator.Sign(c.statusListURL(list.ListID), bits)
	if err != nil {
		c.log.Error(err, "status list signing failed", "list_id", list.ListID)
		return nil, vcerror.New(vcerror.ErrStatusListSignError, "status list signing failed")
	}

	list.Bits = bits.Bytes()
	list.SignedToken = signed
	if err := c.statusListStore.Update(ctx, list); err != nil {
		c.log.Error(err, "status list publish failed", "list_id", list.ListID)
		return nil, vcerror.New(vcerror.ErrStatusListPublishError, "status list publish failed")
	}

	if err := c.credentialStore.SetState(ctx, doc.CID, target); err != nil {
		c.log.Error(err, "credential state update failed", "cid", doc.CID)
		return nil, vcerror.New(vcerror.ErrDatabaseOperationError, "credential state update failed")
	}

	// Serve the new token only after it is durable.
	c.signedLists.Store(list.ListID, signed)

	if activity != "" {
		c.publishActivity(ctx, activity, doc)
	}
	c.log.Info("credential state changed", "cid", doc.CID, "state", string(target))

	return &ChangeStateReply{CID: doc.CID, State: target}, nil
}

func (c *Client) lookupError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return vcerror.New(vcerror.ErrCredCredentialNotFound, "credential not found")
	}
	c.log.Error(err, "credential lookup failed")
	return vcerror.New(vcerror.ErrDatabaseOperationError, "credential lookup failed")
}

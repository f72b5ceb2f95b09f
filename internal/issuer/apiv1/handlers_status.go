package apiv1

import (
	"context"
	"errors"

	"dtw/internal/issuer/db"
	"dtw/pkg/statuslist"
	"dtw/pkg/vcerror"
)

// StatusListRequest names the list to serve.
type StatusListRequest struct {
	ListID string `uri:"id" validate:"required"`
}

// StatusList returns the signed status list token for one list. Served from
// the in-memory cache; the datastore is only consulted on a cold start.
func (c *Client) StatusList(ctx context.Context, req *StatusListRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:StatusList")
	defer span.End()

	if req.ListID == "" {
		return "", vcerror.New(vcerror.ErrIllegalArgument, "status list id is required")
	}

	if cached, ok := c.signedLists.Load(req.ListID); ok {
		return cached.(string), nil
	}

	doc, err := c.statusListStore.Get(ctx, req.ListID)
	if errors.Is(err, db.ErrNotFound) {
		return "", vcerror.New(vcerror.ErrCredCredentialNotFound, "status list not found")
	}
	if err != nil {
		c.log.Error(err, "status list lookup failed", "list_id", req.ListID)
		return "", vcerror.New(vcerror.ErrDatabaseOperationError, "status list lookup failed")
	}

	if doc.SignedToken == "" {
		if err := c.ensurePublished(ctx, req.ListID); err != nil {
			return "", err
		}
		if cached, ok := c.signedLists.Load(req.ListID); ok {
			return cached.(string), nil
		}
		return "", vcerror.New(vcerror.ErrStatusListPublishError, "status list unavailable")
	}

	c.signedLists.Store(req.ListID, doc.SignedToken)
	return doc.SignedToken, nil
}

// ensurePublished signs and persists the initial token for a list that has
// never been published. Lists that already carry a token are only cached.
func (c *Client) ensurePublished(ctx context.Context, listID string) error {
	if _, ok := c.signedLists.Load(listID); ok {
		return nil
	}

	unlock := c.listLocks.Lock(listID)
	defer unlock()

	if _, ok := c.signedLists.Load(listID); ok {
		return nil
	}

	doc, err := c.statusListStore.Get(ctx, listID)
	if err != nil {
		c.log.Error(err, "status list lookup failed", "list_id", listID)
		return vcerror.New(vcerror.ErrDatabaseOperationError, "status list lookup failed")
	}

	if doc.SignedToken == "" {
		bits, err := statuslist.FromBytes(doc.Bits, doc.Size)
		if err != nil {
			c.log.Error(err, "status list decode failed", "list_id", listID)
			return vcerror.New(vcerror.ErrStatusListGenerateError, "status list generation failed")
		}
		signed, err := c.generator.Sign(c.statusListURL(listID), bits)
		if err != nil {
			c.log.Error(err, "status list signing failed", "list_id", listID)
			return vcerror.New(vcerror.ErrStatusListSignError, "status list signing failed")
		}
		doc.SignedToken = signed
		if err := c.statusListStore.Update(ctx, doc); err != nil {
			c.log.Error(err, "status list publish failed", "list_id", listID)
			return vcerror.New(vcerror.ErrStatusListPublishError, "status list publish failed")
		}
		c.log.Info("status list published", "list_id", listID)
	}

	c.signedLists.Store(listID, doc.SignedToken)
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dtw/pkg/model"
)

// CredentialDoc is one issued credential record.
type CredentialDoc struct {
	CID             string                `bson:"cid" json:"cid"`
	IssuerDID       string                `bson:"issuer_did" json:"issuer_did"`
	HolderDID       string                `bson:"holder_did" json:"holder_did"`
	CredentialType  string                `bson:"credential_type" json:"credential_type"`
	Credential      string                `bson:"credential" json:"credential"`
	Nonce           string                `bson:"nonce" json:"nonce"`
	State           model.CredentialState `bson:"state" json:"state"`
	StatusListID    string                `bson:"status_list_id" json:"status_list_id"`
	StatusListIndex int                   `bson:"status_list_index" json:"status_list_index"`
	IssuedAt        time.Time             `bson:"issued_at" json:"issued_at"`
	ExpiresAt       time.Time             `bson:"expires_at" json:"expires_at"`
}

// CredentialColl stores issued credentials, one document per cid.
type CredentialColl struct {
	service *Service
	coll    *mongo.Collection
}

func (c *CredentialColl) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "cid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "nonce", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "holder_did", Value: 1}},
		},
	})
	return err
}

// Status probes the backing datastore, for the health endpoint.
func (c *CredentialColl) Status(ctx context.Context) error {
	return c.service.Status(ctx)
}

// Save inserts one credential document.
func (c *CredentialColl) Save(ctx context.Context, doc *CredentialDoc) error {
	ctx, span := c.service.tracer.Start(ctx, "db:credential:save")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	c.service.log.Debug("credential saved", "cid", doc.CID)
	return nil
}

// GetByCID fetches one credential by its cid.
func (c *CredentialColl) GetByCID(ctx context.Context, cid string) (*CredentialDoc, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:credential:get_by_cid")
	defer span.End()

	return c.getOne(ctx, bson.M{"cid": cid})
}

// GetByNonce fetches one credential by its collect nonce.
func (c *CredentialColl) GetByNonce(ctx context.Context, nonce string) (*CredentialDoc, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:credential:get_by_nonce")
	defer span.End()

	return c.getOne(ctx, bson.M{"nonce": nonce})
}

func (c *CredentialColl) getOne(ctx context.Context, filter bson.M) (*CredentialDoc, error) {
	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	doc := &CredentialDoc{}
	err := c.coll.FindOne(ctx, filter).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return doc, nil
}

// SetState updates the lifecycle state of one credential.
func (c *CredentialColl) SetState(ctx context.Context, cid string, state model.CredentialState) error {
	ctx, span := c.service.tracer.Start(ctx, "db:credential:set_state")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	res, err := c.coll.UpdateOne(ctx,
		bson.M{"cid": cid},
		bson.M{"$set": bson.M{"state": state}},
	)
	if err != nil {
		return fmt.Errorf("update credential state: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	c.service.log.Debug("credential state updated", "cid", cid, "state", string(state))
	return nil
}

// All returns every credential, ordered by issuance time.
func (c *CredentialColl) All(ctx context.Context) ([]*CredentialDoc, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:credential:all")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	cursor, err := c.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find credentials: %w", err)
	}

	docs := []*CredentialDoc{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return docs, nil
}

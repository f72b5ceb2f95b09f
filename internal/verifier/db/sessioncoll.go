package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionColl stores sessions in mongo, one document per (client_id, nonce).
type SessionColl struct {
	service *Service
	coll    *mongo.Collection
}

func (c *SessionColl) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "nonce", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// Mongo purges a session ExpiredRetention after its logical
			// expiry, keeping EXPIRED reads possible in between.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ExpiredRetention.Seconds())),
		},
	})
	return err
}

// Status probes the backing datastore, for the health endpoint.
func (c *SessionColl) Status(ctx context.Context) error {
	return c.service.Status(ctx)
}

// Save upserts one session.
func (c *SessionColl) Save(ctx context.Context, doc *SessionDoc) error {
	ctx, span := c.service.tracer.Start(ctx, "db:session:save")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	filter := bson.M{"client_id": doc.ClientID, "nonce": doc.Nonce}
	if _, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.service.log.Debug("session saved", "session_id", doc.SessionID, "state", string(doc.State))
	return nil
}

// Get fetches one session by its key pair.
func (c *SessionColl) Get(ctx context.Context, clientID, nonce string) (*SessionDoc, error) {
	ctx, span := c.service.tracer.Start(ctx, "db:session:get")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	doc := &SessionDoc{}
	err := c.coll.FindOne(ctx, bson.M{"client_id": clientID, "nonce": nonce}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return doc, nil
}

// Delete removes one session. Deleting an unknown session is not an error.
func (c *SessionColl) Delete(ctx context.Context, clientID, nonce string) error {
	ctx, span := c.service.tracer.Start(ctx, "db:session:delete")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.service.timeout)
	defer cancel()

	if _, err := c.coll.DeleteOne(ctx, bson.M{"client_id": clientID, "nonce": nonce}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Package messagebroker publishes credential lifecycle activity for
// downstream consumers such as audit trails and wallet notification feeds.
package messagebroker

import (
	"context"
	"fmt"
	"time"
)

// ActivityType classifies lifecycle events. The set is closed; Publish
// rejects anything else.
type ActivityType string

const (
	ActivityIssued    ActivityType = "ISSUED"
	ActivityReceived  ActivityType = "RECEIVED"
	ActivityPresented ActivityType = "PRESENTED"
	ActivityRevoked   ActivityType = "REVOKED"
	ActivityDeleted   ActivityType = "DELETED"
)

func (a ActivityType) Valid() bool {
	switch a {
	case ActivityIssued, ActivityReceived, ActivityPresented, ActivityRevoked, ActivityDeleted:
		return true
	}
	return false
}

// Activity is one lifecycle event on a credential.
type Activity struct {
	Type      ActivityType `json:"type"`
	CID       string       `json:"cid,omitempty"`
	IssuerDID string       `json:"issuer_did,omitempty"`
	HolderDID string       `json:"holder_did,omitempty"`
	At        time.Time    `json:"at"`
}

func (a *Activity) validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown activity type %q", a.Type)
	}
	return nil
}

// Publisher emits credential activity.
type Publisher interface {
	Publish(ctx context.Context, activity *Activity) error
	Close() error
}

// Noop discards activity; installed when no broker is configured.
type Noop struct{}

func (Noop) Publish(_ context.Context, activity *Activity) error {
	return activity.validate()
}

func (Noop) Close() error { return nil }

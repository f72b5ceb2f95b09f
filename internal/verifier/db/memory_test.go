package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtw/pkg/logger"
	"dtw/pkg/model"
	"dtw/pkg/openid4vp"
)

func testSessions(t *testing.T) *MemorySessions {
	t.Helper()
	log, err := logger.New("test", "debug", false)
	require.NoError(t, err)

	store := NewMemorySessions(log)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func sessionFixture() *SessionDoc {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &SessionDoc{
		SessionID: "sess-1",
		ClientID:  "client-1",
		Nonce:     "nonce-1",
		State:     openid4vp.SessionStateDefinitionRegistered,
		PresentationDefinition: &openid4vp.PresentationDefinition{
			ID: "national-id-check",
			InputDescriptors: []openid4vp.InputDescriptor{
				{
					ID: "national-id",
					Constraints: &openid4vp.Constraints{
						Fields: []openid4vp.Field{
							{Path: []string{"$.vc.credentialSubject.nationalID"}},
						},
					},
				},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
}

func TestMemorySessionsRoundTrip(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	doc := sessionFixture()
	require.NoError(t, store.Save(ctx, doc))

	got, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestMemorySessionsUpsert(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	doc := sessionFixture()
	require.NoError(t, store.Save(ctx, doc))

	doc.State = openid4vp.SessionStateVerified
	doc.Verdict = &model.VerifyResult{
		VerifyResult: true,
		HolderDID:    "did:example:holder456",
		Nonce:        "nonce-1",
		ClientID:     "client-1",
		VCs: []*model.VCResult{{
			IssuerDID: "did:example:issuer123",
			Format:    model.FormatJWTVC,
			Path:      "$.vp.verifiableCredential[0]",
			Claims:    map[string]any{"nationalID": "A123456789"},
		}},
	}
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Second)
	require.NoError(t, store.Save(ctx, doc))

	got, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestMemorySessionsCopyIsolation(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	doc := sessionFixture()
	require.NoError(t, store.Save(ctx, doc))

	// Mutating the saved document must not leak into the store.
	doc.State = openid4vp.SessionStateRejected

	got, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateDefinitionRegistered, got.State)

	// Same for documents handed out by Get.
	got.State = openid4vp.SessionStateExpired

	again, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateDefinitionRegistered, again.State)
}

func TestMemorySessionsKeyedByClientAndNonce(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	first := sessionFixture()
	require.NoError(t, store.Save(ctx, first))

	second := sessionFixture()
	second.SessionID = "sess-2"
	second.ClientID = "client-2"
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)

	got, err = store.Get(ctx, "client-2", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", got.SessionID)
}

func TestMemorySessionsMissing(t *testing.T) {
	store := testSessions(t)

	_, err := store.Get(context.Background(), "client-1", "nonce-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySessionsDelete(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	doc := sessionFixture()
	require.NoError(t, store.Save(ctx, doc))
	require.NoError(t, store.Delete(ctx, "client-1", "nonce-1"))

	_, err := store.Get(ctx, "client-1", "nonce-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "client-1", "nonce-1"))
}

func TestMemorySessionsExpiredStillReadable(t *testing.T) {
	store := testSessions(t)
	ctx := context.Background()

	doc := sessionFixture()
	doc.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, doc))

	// Logically expired sessions stay readable for the retention window so
	// polling clients observe EXPIRED instead of an unknown session.
	got, err := store.Get(ctx, "client-1", "nonce-1")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now()))
}

func TestSessionDocExpired(t *testing.T) {
	now := time.Now()

	doc := &SessionDoc{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, doc.Expired(now))
	assert.True(t, doc.Expired(now.Add(2*time.Minute)))

	// Exactly at the deadline is still live.
	assert.False(t, doc.Expired(doc.ExpiresAt))

	// Sessions without a deadline never expire.
	forever := &SessionDoc{}
	assert.False(t, forever.Expired(now))
}

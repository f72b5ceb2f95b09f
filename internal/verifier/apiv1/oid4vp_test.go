package apiv1

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtw/pkg/messagebroker"
	"dtw/pkg/model"
	"dtw/pkg/openid4vp"
	"dtw/pkg/vcerror"
	"dtw/pkg/vcjwt"
)

func testDefinition() *openid4vp.PresentationDefinition {
	return &openid4vp.PresentationDefinition{
		ID: "national-id-check",
		InputDescriptors: []openid4vp.InputDescriptor{{
			ID: "national-id",
			Constraints: &openid4vp.Constraints{
				Fields: []openid4vp.Field{{Path: []string{"$.vc.credentialSubject.nationalID"}}},
			},
		}},
	}
}

func registerSession(t *testing.T, fixture *verifierFixture, clientID, nonce string) *ModifyPresentationDefinitionReply {
	t.Helper()
	reply, err := fixture.client.ModifyPresentationDefinition(context.Background(), &ModifyPresentationDefinitionRequest{
		Mode:                   DefinitionModeSave,
		ClientID:               clientID,
		Nonce:                  nonce,
		PresentationDefinition: testDefinition(),
	})
	require.NoError(t, err)
	return reply
}

// sessionVP signs a presentation bound to one session: jti carries the
// nonce and aud the client id.
func sessionVP(t *testing.T, fixture *verifierFixture, clientID, nonce string) string {
	t.Helper()
	vc := signVC(t, fixture.issuerKey, nil)
	return signVP(t, fixture.holderKey, []string{vc}, func(claims *vcjwt.VPClaims) {
		claims.ID = nonce
		claims.Audience = jwt.ClaimStrings{clientID}
	})
}

func TestModifyPresentationDefinition(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	t.Run("save registers a session", func(t *testing.T) {
		reply := registerSession(t, fixture, "client-1", "nonce-1")
		assert.NotEmpty(t, reply.SessionID)
		assert.Equal(t, openid4vp.SessionStateDefinitionRegistered, reply.State)
	})

	t.Run("save without definition", func(t *testing.T) {
		_, err := fixture.client.ModifyPresentationDefinition(ctx, &ModifyPresentationDefinitionRequest{
			Mode:     DefinitionModeSave,
			ClientID: "client-1",
			Nonce:    "nonce-2",
		})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := fixture.client.ModifyPresentationDefinition(ctx, &ModifyPresentationDefinitionRequest{
			Mode:                   "UPSERT",
			ClientID:               "client-1",
			Nonce:                  "nonce-3",
			PresentationDefinition: testDefinition(),
		})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := fixture.client.ModifyPresentationDefinition(ctx, &ModifyPresentationDefinitionRequest{Mode: DefinitionModeSave})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("delete removes the session", func(t *testing.T) {
		registerSession(t, fixture, "client-2", "nonce-1")

		reply, err := fixture.client.ModifyPresentationDefinition(ctx, &ModifyPresentationDefinitionRequest{
			Mode:     DefinitionModeDelete,
			ClientID: "client-2",
			Nonce:    "nonce-1",
		})
		require.NoError(t, err)
		assert.Equal(t, openid4vp.SessionStateNone, reply.State)

		_, err = fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-2", Nonce: "nonce-1"})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("delete of an unknown session", func(t *testing.T) {
		reply, err := fixture.client.ModifyPresentationDefinition(ctx, &ModifyPresentationDefinitionRequest{
			Mode:     DefinitionModeDelete,
			ClientID: "client-9",
			Nonce:    "nonce-9",
		})
		require.NoError(t, err)
		assert.Equal(t, openid4vp.SessionStateNone, reply.State)
	})
}

func TestSessionLifecycle(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	_, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.Error(t, err)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)

	registerSession(t, fixture, "client-1", "nonce-1")

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateDefinitionRegistered, reply.State)
	assert.Nil(t, reply.VerifyResult)

	// Past the session TTL the session reads EXPIRED instead of vanishing.
	fixture.client.clock = func() time.Time { return time.Now().Add(11 * time.Minute) }
	reply, err = fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateExpired, reply.State)
}

func TestVerifyFlow(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	registerSession(t, fixture, "C1", "N1")

	authReply, err := fixture.client.GetAuthorizationRequest(ctx, &AuthorizationRequestQuery{ClientID: "C1", Nonce: "N1"})
	require.NoError(t, err)
	request := authReply.AuthorizationRequest
	assert.Equal(t, "C1", request.ClientID)
	assert.Equal(t, "N1", request.Nonce)
	assert.Equal(t, "vp_token", request.ResponseType)
	assert.Equal(t, "direct_post", request.ResponseMode)
	assert.Equal(t, "https://verifier.example.com/api/oidvp/verify", request.ResponseURI)
	require.NotNil(t, request.PresentationDefinition)
	assert.Equal(t, "national-id-check", request.PresentationDefinition.ID)
	require.NotNil(t, authReply.QR)
	assert.NotEmpty(t, authReply.QR.Base64PNG)
	assert.Contains(t, authReply.QR.URI, "openid4vp://authorize?client_id=C1")

	pending, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "C1", Nonce: "N1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateResponsePending, pending.State)

	verdict, err := fixture.client.Verify(ctx, &VerifyRequest{
		AuthorizationResponse: openid4vp.AuthorizationResponse{
			VPToken:  sessionVP(t, fixture, "C1", "N1"),
			ClientID: "C1",
			Nonce:    "N1",
		},
	})
	require.NoError(t, err)
	assert.True(t, verdict.VerifyResult)
	assert.Equal(t, holderDID, verdict.HolderDID)
	assert.Equal(t, "N1", verdict.Nonce)
	assert.Equal(t, "C1", verdict.ClientID)
	require.Len(t, verdict.VCs, 1)

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "C1", Nonce: "N1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateVerified, reply.State)
	require.NotNil(t, reply.VerifyResult)
	assert.Equal(t, holderDID, reply.HolderDID)

	// The verdict flattens alongside the state in the JSON reply.
	blob, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"state":"VERIFIED"`)
	assert.Contains(t, string(blob), `"verify_result":true`)

	assert.Contains(t, fixture.broker.types(), messagebroker.ActivityPresented)
}

func TestVerifyWalletError(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	registerSession(t, fixture, "client-1", "nonce-1")

	verdict, err := fixture.client.Verify(ctx, &VerifyRequest{
		AuthorizationResponse: openid4vp.AuthorizationResponse{
			ClientID:         "client-1",
			Nonce:            "nonce-1",
			Error:            "access_denied",
			ErrorDescription: "the user declined the request",
		},
	})
	require.NoError(t, err)
	assert.False(t, verdict.VerifyResult)
	assert.Equal(t, "access_denied", verdict.Error)
	assert.Equal(t, "the user declined the request", verdict.ErrorDescription)

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateRejected, reply.State)
}

func TestVerifyNonceMismatch(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	registerSession(t, fixture, "client-1", "nonce-1")

	// The presentation is valid but bound to a different exchange.
	verdict, err := fixture.client.Verify(ctx, &VerifyRequest{
		AuthorizationResponse: openid4vp.AuthorizationResponse{
			VPToken:  sessionVP(t, fixture, "client-1", "other-nonce"),
			ClientID: "client-1",
			Nonce:    "nonce-1",
		},
	})
	require.NoError(t, err)
	assert.False(t, verdict.VerifyResult)
	assert.Equal(t, vcerror.ErrPresHolderPublicKeyInconsistent, verdict.Code)

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateRejected, reply.State)
}

func TestVerifyBadSignature(t *testing.T) {
	// The registered holder key does not match the key that signed the VP,
	// so the crypto failure rejects the session instead of failing the call.
	fixture := newFixture(t, func(cfg *model.Cfg) {
		wrong, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		cfg.Verifier.TrustedKeys[holderDID] = pubPEM(t, wrong.Public())
	})
	ctx := context.Background()

	registerSession(t, fixture, "client-1", "nonce-1")

	verdict, err := fixture.client.Verify(ctx, &VerifyRequest{
		AuthorizationResponse: openid4vp.AuthorizationResponse{
			VPToken:  sessionVP(t, fixture, "client-1", "nonce-1"),
			ClientID: "client-1",
			Nonce:    "nonce-1",
		},
	})
	require.NoError(t, err)
	assert.False(t, verdict.VerifyResult)
	assert.Equal(t, vcerror.ErrPresValidateVPProofError, verdict.Code)
	assert.Equal(t, vcerror.MsgVPValidationFailed, verdict.Error)

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateRejected, reply.State)
}

func TestVerifyInlineDefinition(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	// Wallet initiated flow: no prior SAVE, the definition rides along and
	// the session is created and settled in one call.
	verdict, err := fixture.client.Verify(ctx, &VerifyRequest{
		AuthorizationResponse: openid4vp.AuthorizationResponse{
			VPToken:  sessionVP(t, fixture, "client-1", "nonce-1"),
			ClientID: "client-1",
			Nonce:    "nonce-1",
		},
		PresentationDefinition: testDefinition(),
	})
	require.NoError(t, err)
	assert.True(t, verdict.VerifyResult)

	reply, err := fixture.client.GetVerifyResult(ctx, &GetVerifyResultRequest{ClientID: "client-1", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, openid4vp.SessionStateVerified, reply.State)
}

func TestVerifyValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing parameters", func(t *testing.T) {
		fixture := newFixture(t, nil)
		_, err := fixture.client.Verify(ctx, &VerifyRequest{})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("unknown session without inline definition", func(t *testing.T) {
		fixture := newFixture(t, nil)
		_, err := fixture.client.Verify(ctx, &VerifyRequest{
			AuthorizationResponse: openid4vp.AuthorizationResponse{
				VPToken:  sessionVP(t, fixture, "client-1", "nonce-1"),
				ClientID: "client-1",
				Nonce:    "nonce-1",
			},
		})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("success response without vp_token", func(t *testing.T) {
		fixture := newFixture(t, nil)
		registerSession(t, fixture, "client-1", "nonce-1")
		_, err := fixture.client.Verify(ctx, &VerifyRequest{
			AuthorizationResponse: openid4vp.AuthorizationResponse{ClientID: "client-1", Nonce: "nonce-1"},
		})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("expired session", func(t *testing.T) {
		fixture := newFixture(t, nil)
		registerSession(t, fixture, "client-1", "nonce-1")
		fixture.client.clock = func() time.Time { return time.Now().Add(11 * time.Minute) }

		_, err := fixture.client.Verify(ctx, &VerifyRequest{
			AuthorizationResponse: openid4vp.AuthorizationResponse{
				VPToken:  sessionVP(t, fixture, "client-1", "nonce-1"),
				ClientID: "client-1",
				Nonce:    "nonce-1",
			},
		})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("already completed session", func(t *testing.T) {
		fixture := newFixture(t, nil)
		registerSession(t, fixture, "client-1", "nonce-1")

		vp := sessionVP(t, fixture, "client-1", "nonce-1")
		req := &VerifyRequest{
			AuthorizationResponse: openid4vp.AuthorizationResponse{
				VPToken:  vp,
				ClientID: "client-1",
				Nonce:    "nonce-1",
			},
		}
		_, err := fixture.client.Verify(ctx, req)
		require.NoError(t, err)

		// A nonce settles at most one exchange.
		_, err = fixture.client.Verify(ctx, req)
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})
}

func TestAuthorizationRequestValidation(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	t.Run("missing parameters", func(t *testing.T) {
		_, err := fixture.client.GetAuthorizationRequest(ctx, &AuthorizationRequestQuery{})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := fixture.client.GetAuthorizationRequest(ctx, &AuthorizationRequestQuery{ClientID: "client-9", Nonce: "nonce-9"})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("completed session", func(t *testing.T) {
		registerSession(t, fixture, "client-1", "nonce-1")
		_, err := fixture.client.Verify(ctx, &VerifyRequest{
			AuthorizationResponse: openid4vp.AuthorizationResponse{
				VPToken:  sessionVP(t, fixture, "client-1", "nonce-1"),
				ClientID: "client-1",
				Nonce:    "nonce-1",
			},
		})
		require.NoError(t, err)

		_, err = fixture.client.GetAuthorizationRequest(ctx, &AuthorizationRequestQuery{ClientID: "client-1", Nonce: "nonce-1"})
		require.Error(t, err)
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})
}

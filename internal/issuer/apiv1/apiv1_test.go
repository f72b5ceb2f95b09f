package apiv1

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dtw/internal/issuer/db"
	"dtw/pkg/logger"
	"dtw/pkg/messagebroker"
	"dtw/pkg/model"
	"dtw/pkg/statuslist"
	"dtw/pkg/trace"
	"dtw/pkg/vcerror"
	"dtw/pkg/vcjwt"
)

type memCredentialStore struct {
	mu      sync.Mutex
	docs    map[string]*db.CredentialDoc
	saveErr error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{docs: map[string]*db.CredentialDoc{}}
}

func (m *memCredentialStore) Save(_ context.Context, doc *db.CredentialDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *doc
	m.docs[doc.CID] = &cp
	return nil
}

func (m *memCredentialStore) GetByCID(_ context.Context, cid string) (*db.CredentialDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[cid]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memCredentialStore) GetByNonce(_ context.Context, nonce string) (*db.CredentialDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.Nonce == nonce {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memCredentialStore) SetState(_ context.Context, cid string, state model.CredentialState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[cid]
	if !ok {
		return db.ErrNotFound
	}
	doc.State = state
	return nil
}

func (m *memCredentialStore) All(_ context.Context) ([]*db.CredentialDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]*db.CredentialDoc, 0, len(m.docs))
	for _, doc := range m.docs {
		cp := *doc
		docs = append(docs, &cp)
	}
	return docs, nil
}

type memStatusListStore struct {
	mu       sync.Mutex
	lists    map[string]*db.StatusListDoc
	order    []string
	allocErr error
}

func newMemStatusListStore() *memStatusListStore {
	return &memStatusListStore{lists: map[string]*db.StatusListDoc{}}
}

func (m *memStatusListStore) Allocate(_ context.Context, size int) (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allocErr != nil {
		return "", 0, m.allocErr
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		doc := m.lists[m.order[i]]
		if doc.NextIndex < doc.Size {
			index := doc.NextIndex
			doc.NextIndex++
			return doc.ListID, index, nil
		}
	}
	bits, err := statuslist.NewBitString(size)
	if err != nil {
		return "", 0, err
	}
	doc := &db.StatusListDoc{
		ListID:    uuid.NewString(),
		Size:      size,
		NextIndex: 1,
		Bits:      bits.Bytes(),
		CreatedAt: time.Now().UTC(),
	}
	m.lists[doc.ListID] = doc
	m.order = append(m.order, doc.ListID)
	return doc.ListID, 0, nil
}

func (m *memStatusListStore) Get(_ context.Context, listID string) (*db.StatusListDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.lists[listID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memStatusListStore) Update(_ context.Context, doc *db.StatusListDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.lists[doc.ListID]
	if !ok {
		return db.ErrNotFound
	}
	stored.Bits = doc.Bits
	stored.SignedToken = doc.SignedToken
	return nil
}

type capturePublisher struct {
	mu         sync.Mutex
	activities []*messagebroker.Activity
}

func (p *capturePublisher) Publish(_ context.Context, activity *messagebroker.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activities = append(p.activities, activity)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []messagebroker.ActivityType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]messagebroker.ActivityType, 0, len(p.activities))
	for _, a := range p.activities {
		types = append(types, a.Type)
	}
	return types
}

type issuerFixture struct {
	client *Client
	creds  *memCredentialStore
	lists  *memStatusListStore
	broker *capturePublisher
}

func writeKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "issuer.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))
	return path
}

func newFixture(t *testing.T, mutate func(cfg *model.Cfg)) *issuerFixture {
	t.Helper()

	cfg := &model.Cfg{
		Issuer: &model.Issuer{
			DID:            "did:web:issuer.example.com",
			SigningKeyPath: writeKeyPEM(t),
			ExternalURL:    "https://issuer.example.com",
			CredentialTTL:  24 * time.Hour,
			StatusList:     model.StatusListCfg{Size: 8, TokenTTL: time.Hour},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	log, err := logger.New("test", "debug", false)
	require.NoError(t, err)

	fixture := &issuerFixture{
		creds:  newMemCredentialStore(),
		lists:  newMemStatusListStore(),
		broker: &capturePublisher{},
	}
	fixture.client, err = New(context.Background(), fixture.creds, fixture.lists, fixture.broker, cfg, trace.NewForTesting(), log)
	require.NoError(t, err)
	return fixture
}

func generateRequest() *GenerateRequest {
	return &GenerateRequest{
		IssuerDID:      "did:web:issuer.example.com",
		CredentialType: "EHICCredential",
		HolderDID:      "did:web:holder.example.com",
		CredentialSubject: map[string]any{
			"given_name":  gofakeit.FirstName(),
			"family_name": gofakeit.LastName(),
		},
	}
}

func TestGenerate(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	reply, err := fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, reply.CID)
	assert.NotEmpty(t, reply.Nonce)
	assert.NotEqual(t, reply.CID, reply.Nonce)

	claims := &vcjwt.VCClaims{}
	parsed, err := jwt.ParseWithClaims(reply.Credential, claims, func(*jwt.Token) (any, error) {
		return fixture.client.signingKey.Public(), nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, reply.CID, claims.ID)
	assert.Equal(t, "did:web:issuer.example.com", claims.Issuer)
	assert.Equal(t, "did:web:holder.example.com", claims.Subject)
	assert.Contains(t, claims.VC.Type, "EHICCredential")
	assert.Equal(t, "did:web:holder.example.com", claims.VC.CredentialSubject["id"])

	status := claims.VC.CredentialStatus
	require.NotNil(t, status)
	assert.Equal(t, "TokenStatusListEntry", status.Type)
	assert.Equal(t, "0", status.StatusListIndex)
	assert.True(t, strings.HasPrefix(status.StatusListCredential, "https://issuer.example.com/api/status/"), status.StatusListCredential)

	doc, err := fixture.creds.GetByCID(ctx, reply.CID)
	require.NoError(t, err)
	assert.Equal(t, model.CredentialStateActive, doc.State)
	assert.Equal(t, reply.Credential, doc.Credential)

	t.Run("list published on first issuance", func(t *testing.T) {
		list, err := fixture.lists.Get(ctx, doc.StatusListID)
		require.NoError(t, err)
		assert.NotEmpty(t, list.SignedToken)
	})

	t.Run("issued activity emitted", func(t *testing.T) {
		assert.Equal(t, []messagebroker.ActivityType{messagebroker.ActivityIssued}, fixture.broker.types())
	})
}

func TestGenerateValidation(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(req *GenerateRequest)
	}{
		{"missing issuer did", func(req *GenerateRequest) { req.IssuerDID = "" }},
		{"missing credential type", func(req *GenerateRequest) { req.CredentialType = "" }},
		{"missing subject", func(req *GenerateRequest) { req.CredentialSubject = nil }},
		{"empty subject", func(req *GenerateRequest) { req.CredentialSubject = map[string]any{} }},
		{"no holder", func(req *GenerateRequest) { req.HolderDID = "" }},
		{"oversized string", func(req *GenerateRequest) {
			req.CredentialSubject["blob"] = strings.Repeat("x", maxSubjectString+1)
		}},
		{"too many keys", func(req *GenerateRequest) {
			for i := 0; i <= maxSubjectKeys; i++ {
				req.CredentialSubject[fmt.Sprintf("k%d", i)] = i
			}
		}},
		{"nested too deep", func(req *GenerateRequest) {
			nested := map[string]any{"leaf": "v"}
			for i := 0; i < maxSubjectNesting; i++ {
				nested = map[string]any{"level": nested}
			}
			req.CredentialSubject["deep"] = nested
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := generateRequest()
			tt.mutate(req)
			_, err := fixture.client.Generate(ctx, req)
			assert.True(t, vcerror.HasCode(err, vcerror.ErrCredInvalidCredentialRequest), "got %v", err)
		})
	}
}

func TestGenerateSubjectSchema(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "subject.json")
	schema := `{"type":"object","required":["given_name"],"properties":{"given_name":{"type":"string"}}}`
	require.NoError(t, os.WriteFile(schemaPath, []byte(schema), 0o600))

	fixture := newFixture(t, func(cfg *model.Cfg) {
		cfg.Issuer.SubjectSchemaPath = schemaPath
	})
	ctx := context.Background()

	_, err := fixture.client.Generate(ctx, generateRequest())
	assert.NoError(t, err)

	req := generateRequest()
	delete(req.CredentialSubject, "given_name")
	_, err = fixture.client.Generate(ctx, req)
	assert.True(t, vcerror.HasCode(err, vcerror.ErrCredInvalidCredentialRequest), "got %v", err)
}

func TestGenerateStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("allocation failure", func(t *testing.T) {
		fixture := newFixture(t, nil)
		fixture.lists.allocErr = fmt.Errorf("mongo down")
		_, err := fixture.client.Generate(ctx, generateRequest())
		assert.True(t, vcerror.HasCode(err, vcerror.ErrStatusListGenerateError), "got %v", err)
	})

	t.Run("persist failure", func(t *testing.T) {
		fixture := newFixture(t, nil)
		fixture.creds.saveErr = fmt.Errorf("mongo down")
		_, err := fixture.client.Generate(ctx, generateRequest())
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredPersistCredentialError), "got %v", err)
	})
}

func TestStatusListRollover(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	listIDs := map[string]bool{}
	for i := 0; i < 9; i++ {
		reply, err := fixture.client.Generate(ctx, generateRequest())
		require.NoError(t, err)
		doc, err := fixture.creds.GetByCID(ctx, reply.CID)
		require.NoError(t, err)
		listIDs[doc.StatusListID] = true
		if i == 8 {
			// first entry on the second list
			assert.Equal(t, 0, doc.StatusListIndex)
		}
	}
	assert.Len(t, listIDs, 2)
}

func TestQuery(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	reply, err := fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)

	t.Run("by cid", func(t *testing.T) {
		doc, err := fixture.client.Query(ctx, &QueryRequest{CID: reply.CID})
		require.NoError(t, err)
		assert.Equal(t, reply.Credential, doc.Credential)
	})

	t.Run("by nonce", func(t *testing.T) {
		doc, err := fixture.client.Query(ctx, &QueryRequest{Nonce: reply.Nonce})
		require.NoError(t, err)
		assert.Equal(t, reply.CID, doc.CID)
	})

	t.Run("no handle", func(t *testing.T) {
		_, err := fixture.client.Query(ctx, &QueryRequest{})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("unknown cid", func(t *testing.T) {
		_, err := fixture.client.Query(ctx, &QueryRequest{CID: "missing"})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredCredentialNotFound), "got %v", err)
	})
}

func listStatusAt(t *testing.T, fixture *issuerFixture, cid string) statuslist.Status {
	t.Helper()
	ctx := context.Background()
	doc, err := fixture.creds.GetByCID(ctx, cid)
	require.NoError(t, err)
	list, err := fixture.lists.Get(ctx, doc.StatusListID)
	require.NoError(t, err)
	bits, err := statuslist.FromBytes(list.Bits, list.Size)
	require.NoError(t, err)
	status, err := bits.Get(doc.StatusListIndex)
	require.NoError(t, err)
	return status
}

func TestLifecycle(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	reply, err := fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)
	cid := reply.CID

	t.Run("suspend", func(t *testing.T) {
		state, err := fixture.client.Suspend(ctx, &ChangeStateRequest{CID: cid})
		require.NoError(t, err)
		assert.Equal(t, model.CredentialStateSuspended, state.State)
		assert.Equal(t, statuslist.StatusSuspended, listStatusAt(t, fixture, cid))
	})

	t.Run("suspend again is a no-op", func(t *testing.T) {
		state, err := fixture.client.Suspend(ctx, &ChangeStateRequest{CID: cid})
		require.NoError(t, err)
		assert.Equal(t, model.CredentialStateSuspended, state.State)
	})

	t.Run("recover", func(t *testing.T) {
		state, err := fixture.client.Recover(ctx, &ChangeStateRequest{CID: cid})
		require.NoError(t, err)
		assert.Equal(t, model.CredentialStateActive, state.State)
		assert.Equal(t, statuslist.StatusActive, listStatusAt(t, fixture, cid))
	})

	t.Run("revoke", func(t *testing.T) {
		state, err := fixture.client.Revoke(ctx, &ChangeStateRequest{CID: cid})
		require.NoError(t, err)
		assert.Equal(t, model.CredentialStateRevoked, state.State)
		assert.Equal(t, statuslist.StatusRevoked, listStatusAt(t, fixture, cid))
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		state, err := fixture.client.Revoke(ctx, &ChangeStateRequest{CID: cid})
		require.NoError(t, err)
		assert.Equal(t, model.CredentialStateRevoked, state.State)
	})

	t.Run("suspend after revoke rejected", func(t *testing.T) {
		_, err := fixture.client.Suspend(ctx, &ChangeStateRequest{CID: cid})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredStatusTransitionNotAllowed), "got %v", err)
	})

	t.Run("recover after revoke rejected", func(t *testing.T) {
		_, err := fixture.client.Recover(ctx, &ChangeStateRequest{CID: cid})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredStatusTransitionNotAllowed), "got %v", err)
		assert.Equal(t, statuslist.StatusRevoked, listStatusAt(t, fixture, cid))
	})

	t.Run("unknown cid", func(t *testing.T) {
		_, err := fixture.client.Revoke(ctx, &ChangeStateRequest{CID: "missing"})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredCredentialNotFound), "got %v", err)
	})

	t.Run("missing cid", func(t *testing.T) {
		_, err := fixture.client.Revoke(ctx, &ChangeStateRequest{})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrIllegalArgument), "got %v", err)
	})

	t.Run("activity trail", func(t *testing.T) {
		assert.Equal(t, []messagebroker.ActivityType{
			messagebroker.ActivityIssued,
			messagebroker.ActivityRevoked,
		}, fixture.broker.types())
	})
}

func TestStatusListServe(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	reply, err := fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)
	doc, err := fixture.creds.GetByCID(ctx, reply.CID)
	require.NoError(t, err)

	token, err := fixture.client.StatusList(ctx, &StatusListRequest{ListID: doc.StatusListID})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "did:web:issuer.example.com", claims["iss"])
	assert.Equal(t, fixture.client.statusListURL(doc.StatusListID), claims["sub"])

	t.Run("revocation republishes", func(t *testing.T) {
		_, err := fixture.client.Revoke(ctx, &ChangeStateRequest{CID: reply.CID})
		require.NoError(t, err)

		updated, err := fixture.client.StatusList(ctx, &StatusListRequest{ListID: doc.StatusListID})
		require.NoError(t, err)
		assert.NotEqual(t, token, updated)
	})

	t.Run("unknown list", func(t *testing.T) {
		_, err := fixture.client.StatusList(ctx, &StatusListRequest{ListID: "missing"})
		assert.True(t, vcerror.HasCode(err, vcerror.ErrCredCredentialNotFound), "got %v", err)
	})
}

func TestDIDDocumentAndJWKS(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	doc, err := fixture.client.DIDDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "did:web:issuer.example.com", doc.ID)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Equal(t, "JsonWebKey2020", doc.VerificationMethod[0].Type)

	key, err := doc.SelectKey("did:web:issuer.example.com", fixture.client.keyID)
	require.NoError(t, err)
	pub, ok := key.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, pub.Equal(fixture.client.signingKey.Public()))

	jwks, err := fixture.client.JWKS(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(jwks), `"keys"`)
	assert.Contains(t, string(jwks), fixture.client.keyID)
}

func TestExport(t *testing.T) {
	fixture := newFixture(t, nil)
	ctx := context.Background()

	first, err := fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)
	_, err = fixture.client.Generate(ctx, generateRequest())
	require.NoError(t, err)

	reply, err := fixture.client.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, xlsxContentType, reply.ContentType)
	assert.True(t, strings.HasSuffix(reply.Filename, ".xlsx"))

	workbook, err := excelize.OpenReader(bytes.NewReader(reply.Data))
	require.NoError(t, err)
	defer workbook.Close()

	header, err := workbook.GetCellValue("Credentials", "A1")
	require.NoError(t, err)
	assert.Equal(t, "CID", header)

	rows, err := workbook.GetRows("Credentials")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	cids := []string{rows[1][0], rows[2][0]}
	assert.Contains(t, cids, first.CID)
}

func TestHealth(t *testing.T) {
	fixture := newFixture(t, nil)

	health, err := fixture.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "issuer", health.ServiceName)
	assert.Equal(t, "STATUS_OK", health.Status)
}

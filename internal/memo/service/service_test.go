package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritax/internal/audit"
	auditmem "veritax/internal/audit/store/memory"
	"veritax/internal/memo/models"
	"veritax/internal/memo/store"
	id "veritax/pkg/domain"
	dErrors "veritax/pkg/domain-errors"
	"veritax/pkg/requestcontext"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testContext(orgID id.OrgID, userID id.UserID) context.Context {
	ctx := requestcontext.WithOrgID(context.Background(), orgID)
	ctx = requestcontext.WithUserID(ctx, userID)
	ctx = requestcontext.WithTime(ctx, testNow)
	return ctx
}

func newTestService(t *testing.T) (*Service, *audit.Publisher) {
	t.Helper()
	publisher := audit.NewPublisher(auditmem.NewInMemoryStore())
	svc := New(store.NewInMemory(), WithAuditPublisher(publisher))
	return svc, publisher
}

func memoRequest(clientID id.ClientID) *CreateMemoRequest {
	sections, _ := json.Marshal(map[string]string{
		"facts":    "Client exceeded the California economic nexus threshold in Q2.",
		"analysis": "Registration and prospective collection are required.",
	})
	return &CreateMemoRequest{
		ClientID:        clientID.String(),
		MemoType:        "INITIAL",
		Title:           "California nexus determination",
		Sections:        sections,
		Conclusion:      "Nexus established effective April 2024.",
		Recommendations: "Register with the CDTFA within 30 days.",
	}
}

func TestCreateMemo(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	userID := id.UserID(uuid.New())
	ctx := testContext(orgID, userID)
	svc, publisher := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)

	assert.Equal(t, id.MemoDraft, memo.Status)
	assert.Equal(t, orgID, memo.OrgID)
	assert.Empty(t, memo.Hash)
	assert.Nil(t, memo.SealedAt)

	trail, err := publisher.Trail(ctx, orgID, "memo", memo.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, audit.ActionMemoCreated, trail[0].Action)
}

func TestCreateMemo_Validation(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	t.Run("missing title", func(t *testing.T) {
		req := memoRequest(id.ClientID(uuid.New()))
		req.Title = "   "
		_, err := svc.CreateMemo(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("unknown memo type", func(t *testing.T) {
		req := memoRequest(id.ClientID(uuid.New()))
		req.MemoType = "ADDENDUM"
		_, err := svc.CreateMemo(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("revised without predecessor", func(t *testing.T) {
		req := memoRequest(id.ClientID(uuid.New()))
		req.MemoType = "REVISED"
		_, err := svc.CreateMemo(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("supersedes unknown memo", func(t *testing.T) {
		req := memoRequest(id.ClientID(uuid.New()))
		req.MemoType = "REVISED"
		req.SupersedesMemoID = uuid.NewString()
		_, err := svc.CreateMemo(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestCreateMemo_RevisionChain(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)
	clientID := id.ClientID(uuid.New())

	original, err := svc.CreateMemo(ctx, memoRequest(clientID))
	require.NoError(t, err)

	req := memoRequest(clientID)
	req.MemoType = "REVISED"
	req.Title = "California nexus determination, revised"
	req.SupersedesMemoID = original.ID.String()
	revised, err := svc.CreateMemo(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, revised.SupersedesMemoID)
	assert.Equal(t, original.ID, *revised.SupersedesMemoID)

	// A third revision on top of the second walks the whole chain.
	req = memoRequest(clientID)
	req.MemoType = "REVISED"
	req.SupersedesMemoID = revised.ID.String()
	_, err = svc.CreateMemo(ctx, req)
	require.NoError(t, err)
}

func TestSealAndVerify(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	ctx := testContext(orgID, id.UserID(uuid.New()))
	svc, publisher := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)

	pdf := []byte("%PDF-1.7 rendered memo")
	sealed, err := svc.Seal(ctx, memo.ID, pdf)
	require.NoError(t, err)
	assert.Equal(t, id.MemoSealed, sealed.Status)
	assert.NotEmpty(t, sealed.Hash)
	require.NotNil(t, sealed.SealedAt)
	assert.Equal(t, testNow, *sealed.SealedAt)

	result, err := svc.Verify(ctx, memo.ID, pdf)
	require.NoError(t, err)
	assert.Equal(t, id.VerifyVerified, result.Status)
	assert.True(t, result.Verified)
	assert.Equal(t, sealed.Hash, result.StoredHash)
	assert.Equal(t, sealed.Hash, result.CurrentHash)

	trail, err := publisher.Trail(ctx, orgID, "memo", memo.ID.String())
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, audit.ActionMemoSealed, trail[1].Action)
	assert.Equal(t, audit.ActionMemoVerified, trail[2].Action)
}

func TestVerify_TamperedPDF(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)
	_, err = svc.Seal(ctx, memo.ID, []byte("original rendering"))
	require.NoError(t, err)

	result, err := svc.Verify(ctx, memo.ID, []byte("altered rendering"))
	require.NoError(t, err)
	assert.Equal(t, id.VerifyTampered, result.Status)
	assert.False(t, result.Verified)
	assert.NotEqual(t, result.StoredHash, result.CurrentHash)
}

func TestVerify_Unsealed(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)

	result, err := svc.Verify(ctx, memo.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, id.VerifyNotSealed, result.Status)
}

func TestSeal_UndigestableSections(t *testing.T) {
	orgID := id.OrgID(uuid.New())
	ctx := testContext(orgID, id.UserID(uuid.New()))
	memStore := store.NewInMemory()
	svc := New(memStore)

	// Bypass CreateMemo: only a record written outside the API can carry
	// sections that are not well-formed JSON.
	memo, err := models.NewMemo(
		id.MemoID(uuid.New()), orgID, id.ClientID(uuid.New()),
		id.MemoInitial, "Broken sections",
		json.RawMessage(`{"facts":`), "", "", nil, testNow,
	)
	require.NoError(t, err)
	require.NoError(t, memStore.Create(ctx, memo))

	_, err = svc.Seal(ctx, memo.ID, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	stored, err := svc.GetMemo(ctx, memo.ID)
	require.NoError(t, err)
	assert.Equal(t, id.MemoDraft, stored.Status, "a memo that cannot be digested must stay draft")
	assert.Empty(t, stored.Hash)
}

func TestSeal_AlreadySealed(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)
	_, err = svc.Seal(ctx, memo.ID, nil)
	require.NoError(t, err)

	_, err = svc.Seal(ctx, memo.ID, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestUpdateMemo_SealedIsImmutable(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)

	title := "Updated title"
	updated, err := svc.UpdateMemo(ctx, memo.ID, &UpdateMemoRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Updated title", updated.Title)

	_, err = svc.Seal(ctx, memo.ID, nil)
	require.NoError(t, err)

	_, err = svc.UpdateMemo(ctx, memo.ID, &UpdateMemoRequest{Title: &title})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestVerifications_HistoryGrows(t *testing.T) {
	ctx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	svc, _ := newTestService(t)

	memo, err := svc.CreateMemo(ctx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)
	_, err = svc.Seal(ctx, memo.ID, []byte("rendering"))
	require.NoError(t, err)

	_, err = svc.Verify(ctx, memo.ID, []byte("rendering"))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, memo.ID, []byte("wrong"))
	require.NoError(t, err)

	history, err := svc.Verifications(ctx, memo.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, id.VerifyVerified, history[0].Status)
	assert.Equal(t, id.VerifyTampered, history[1].Status)
}

func TestMemo_TenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)

	ownerCtx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	memo, err := svc.CreateMemo(ownerCtx, memoRequest(id.ClientID(uuid.New())))
	require.NoError(t, err)

	otherCtx := testContext(id.OrgID(uuid.New()), id.UserID(uuid.New()))
	_, err = svc.GetMemo(otherCtx, memo.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.Seal(otherCtx, memo.ID, nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

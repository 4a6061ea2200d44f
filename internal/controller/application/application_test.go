package application

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"AOTF-backend/internal/auth"
	"AOTF-backend/internal/database"
	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/middleware"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/testutil"
)

var (
	testDB     *database.DBinstanceStruct
	testEngine *matching.Engine
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	auth.SetSecretKey("application-test-secret")

	var err error
	var midTeardown func(context.Context, ...testcontainers.TerminateOption) error
	midTeardown, testDB, err = database.GetTestDB()
	if err != nil {
		os.Exit(1)
	}
	testEngine = matching.NewEngine(matching.NewGormStore(testDB), matching.WithBackoff(0))

	code := m.Run()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if midTeardown != nil {
		_ = midTeardown(ctx)
	}
	os.Exit(code)
}

func setupRouter() *gin.Engine {
	r := gin.New()
	ac := NewApplicationController(testEngine)
	g := r.Group("/application", middleware.RequireAuth(testDB))
	g.GET("/:id", middleware.CheckRole(model.RoleAdmin, model.RoleCandidate), ac.GetApplicationByID)

	candidate := g.Group("", middleware.CheckRole(model.RoleCandidate))
	candidate.POST("", ac.ApplicationHandler)
	candidate.GET("/mine", ac.GetMyApplications)
	candidate.POST("/:id/withdrawal", ac.RequestWithdrawalHandler)

	admin := g.Group("/:id", middleware.CheckRole(model.RoleAdmin))
	admin.PATCH("/approve", ac.ApproveHandler)
	admin.PATCH("/decline", ac.DeclineHandler)
	admin.PATCH("/complete", ac.CompleteHandler)
	admin.PATCH("/withdrawal", ac.ResolveWithdrawalHandler)
	return r
}

func token(t *testing.T, user model.User) string {
	t.Helper()
	tok, err := auth.GetAccessToken(t, testDB, user.Username, database.TestSeedPassword)
	require.NoError(t, err)
	return tok
}

func newPosting(t *testing.T) *model.Posting {
	t.Helper()
	p, err := testEngine.CreatePosting(context.Background(), database.TestUserRequester2.ID, model.EditablePostingInfo{
		Kind:  model.PostingKindTutoring,
		Title: "English conversation " + t.Name(),
	})
	require.NoError(t, err)
	return p
}

// apply submits through the HTTP route and returns the new application id
func apply(t *testing.T, r *gin.Engine, candidate model.User, postingID uint) uint {
	t.Helper()
	rec, resp := testutil.MakeJSONRequest(gin.H{"posting_id": postingID, "message": "available weekends"}, token(t, candidate), r, "/application", http.MethodPost)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(resp["id"].(float64))
}

func TestApplicationHandler_Success(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)

	rec, resp := testutil.MakeJSONRequest(gin.H{"posting_id": p.ID, "message": "hi"}, token(t, database.TestUserCandidate1), r, "/application", http.MethodPost)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(p.ID), resp["posting_id"])
	assert.Equal(t, database.TestUserCandidate1.ID.String(), resp["candidate_id"])
	assert.Equal(t, model.ApplicationStatusPending, resp["status"])
}

func TestApplicationHandler_Duplicate(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	apply(t, r, database.TestUserCandidate1, p.ID)

	rec, resp := testutil.MakeJSONRequest(gin.H{"posting_id": p.ID}, token(t, database.TestUserCandidate1), r, "/application", http.MethodPost)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp["code"])
	assert.Contains(t, resp["error"], "already applied")
}

func TestApplicationHandler_InvalidPostingID(t *testing.T) {
	r := setupRouter()
	tok := token(t, database.TestUserCandidate1)

	rec, resp := testutil.MakeJSONRequest(gin.H{"posting_id": 999999}, tok, r, "/application", http.MethodPost)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp["code"])

	rec, _ = testutil.MakeJSONRequest(gin.H{"message": "no posting"}, tok, r, "/application", http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplicationHandler_RequesterForbidden(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)

	rec, _ := testutil.MakeJSONRequest(gin.H{"posting_id": p.ID}, token(t, database.TestUserRequester1), r, "/application", http.MethodPost)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApprove_CascadeOverHTTP(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	ids := []uint{
		apply(t, r, database.TestUserCandidate1, p.ID),
		apply(t, r, database.TestUserCandidate2, p.ID),
		apply(t, r, database.TestUserCandidate3, p.ID),
	}
	adminTok := token(t, database.TestAdminUser)

	rec, resp := testutil.MakeJSONRequest(nil, adminTok, r, fmt.Sprintf("/application/%d/approve", ids[1]), http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(ids[1]), resp["application_id"])
	assert.Equal(t, float64(2), resp["auto_declined_count"])

	for _, id := range []uint{ids[0], ids[2]} {
		rec, resp := testutil.MakeJSONRequest(nil, adminTok, r, fmt.Sprintf("/application/%d", id), http.MethodGet)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, model.ApplicationStatusDeclined, resp["status"])
		assert.Equal(t, true, resp["auto_declined"])
		assert.Contains(t, resp["decline_reason"], fmt.Sprintf("[REF:%d:", p.ID))
		assert.NotContains(t, resp["decline_reason_text"], "[REF:")
		refs := resp["decline_refs"].([]any)
		require.Len(t, refs, 1)
		assert.Equal(t, float64(p.ID), refs[0].(map[string]any)["posting_id"])
		assert.Equal(t, p.Title, refs[0].(map[string]any)["label"])
	}

	// the declined sibling cannot be approved any more
	rec, resp = testutil.MakeJSONRequest(nil, adminTok, r, fmt.Sprintf("/application/%d/approve", ids[0]), http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", resp["code"])
	assert.Equal(t, model.ApplicationStatusDeclined, resp["current_status"])

	posting, err := testEngine.GetPosting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostingStatusMatched, posting.Status)
}

func TestApprove_Errors(t *testing.T) {
	r := setupRouter()
	adminTok := token(t, database.TestAdminUser)

	rec, _ := testutil.MakeJSONRequest(nil, adminTok, r, "/application/999999/approve", http.MethodPatch)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, adminTok, r, "/application/0/approve", http.MethodPatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate1, p.ID)
	rec, _ = testutil.MakeJSONRequest(nil, token(t, database.TestUserCandidate1), r, fmt.Sprintf("/application/%d/approve", id), http.MethodPatch)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeclineHandler(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate2, p.ID)
	adminTok := token(t, database.TestAdminUser)
	endpoint := fmt.Sprintf("/application/%d/decline", id)

	rec, _ := testutil.MakeJSONRequest(gin.H{}, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := testutil.MakeJSONRequest(gin.H{"reason": strings.Repeat("x", 1001)}, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp["code"])

	reason := "Schedule does not fit [REF:12:Grade 8 Math]"
	rec, resp = testutil.MakeJSONRequest(gin.H{"reason": reason}, adminTok, r, endpoint, http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(id), resp["application_id"])
	assert.Equal(t, model.ApplicationStatusDeclined, resp["status"])
	assert.Equal(t, reason, resp["application"].(map[string]any)["decline_reason"])

	rec, resp = testutil.MakeJSONRequest(gin.H{"reason": "again"}, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ApplicationStatusDeclined, resp["current_status"])
}

func TestCompleteHandler(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate3, p.ID)
	adminTok := token(t, database.TestAdminUser)
	endpoint := fmt.Sprintf("/application/%d/complete", id)

	rec, resp := testutil.MakeJSONRequest(nil, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ApplicationStatusPending, resp["current_status"])

	_, err := testEngine.Approve(context.Background(), id, database.TestAdminUser.ID)
	require.NoError(t, err)

	rec, resp = testutil.MakeJSONRequest(nil, adminTok, r, endpoint, http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusCompleted, resp["status"])
	assert.NotEmpty(t, resp["completed_at"])

	posting, err := testEngine.GetPosting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostingStatusClosed, posting.Status)
}

func TestGetApplicationByID_Access(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate1, p.ID)
	endpoint := fmt.Sprintf("/application/%d", id)

	rec, _ := testutil.MakeJSONRequest(nil, token(t, database.TestUserCandidate1), r, endpoint, http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, token(t, database.TestUserCandidate2), r, endpoint, http.MethodGet)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, token(t, database.TestAdminUser), r, endpoint, http.MethodGet)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetMyApplications(t *testing.T) {
	r := setupRouter()
	first := newPosting(t)
	second := newPosting(t)
	a := apply(t, r, database.TestUserCandidate2, first.ID)
	b := apply(t, r, database.TestUserCandidate2, second.ID)

	rec, list := testutil.MakeJSONListRequest(token(t, database.TestUserCandidate2), r, "/application/mine")
	require.Equal(t, http.StatusOK, rec.Code)
	require.GreaterOrEqual(t, len(list), 2)
	// newest first
	assert.Equal(t, float64(b), list[0]["id"])
	assert.Equal(t, float64(a), list[1]["id"])
	for _, app := range list {
		assert.Equal(t, database.TestUserCandidate2.ID.String(), app["candidate_id"])
	}
}

func TestWithdrawal_RequestAndResolve(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate1, p.ID)
	adminTok := token(t, database.TestAdminUser)
	candidateTok := token(t, database.TestUserCandidate1)
	endpoint := fmt.Sprintf("/application/%d/withdrawal", id)

	_, err := testEngine.Approve(context.Background(), id, database.TestAdminUser.ID)
	require.NoError(t, err)

	t.Run("other candidate cannot request", func(t *testing.T) {
		rec, resp := testutil.MakeJSONRequest(gin.H{"note": "not mine"}, token(t, database.TestUserCandidate3), r, endpoint, http.MethodPost)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", resp["code"])
	})

	t.Run("note too long", func(t *testing.T) {
		rec, _ := testutil.MakeJSONRequest(gin.H{"note": strings.Repeat("n", 501)}, candidateTok, r, endpoint, http.MethodPost)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec, resp := testutil.MakeJSONRequest(gin.H{"note": "moving abroad"}, candidateTok, r, endpoint, http.MethodPost)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusWithdrawalRequested, resp["status"])
	assert.NotZero(t, resp["notification_id"])

	rec, _ = testutil.MakeJSONRequest(gin.H{"decision": "maybe"}, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = testutil.MakeJSONRequest(gin.H{"decision": "approve", "admin_note": "ok"}, adminTok, r, endpoint, http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusWithdrawn, resp["status"])

	// resolving twice is refused and changes nothing
	rec, resp = testutil.MakeJSONRequest(gin.H{"decision": "decline"}, adminTok, r, endpoint, http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.ApplicationStatusWithdrawn, resp["current_status"])

	posting, err := testEngine.GetPosting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostingStatusOpen, posting.Status)
}

func TestWithdrawal_EmptyBodyAndDecline(t *testing.T) {
	r := setupRouter()
	p := newPosting(t)
	id := apply(t, r, database.TestUserCandidate2, p.ID)
	endpoint := fmt.Sprintf("/application/%d/withdrawal", id)

	rec, resp := testutil.MakeJSONRequest(nil, token(t, database.TestUserCandidate2), r, endpoint, http.MethodPost)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusWithdrawalRequested, resp["status"])

	rec, resp = testutil.MakeJSONRequest(gin.H{"decision": "DECLINE", "admin_note": "please stay"}, token(t, database.TestAdminUser), r, endpoint, http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ApplicationStatusPending, resp["status"])
	app := resp["application"].(map[string]any)
	assert.Equal(t, "please stay", app["withdrawal_admin_note"])
	assert.NotContains(t, app, "withdrawal_requested_at")
}

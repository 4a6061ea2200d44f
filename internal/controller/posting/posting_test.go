package posting

import (
	"context"
	"fmt"
	"net/http"
	"os"
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
	auth.SetSecretKey("posting-test-secret")

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
	pc := NewPostingController(testEngine)
	g := r.Group("/posting", middleware.RequireAuth(testDB))
	g.GET("", pc.GetPostings)
	g.GET("/:id", pc.GetPostingByID)
	g.POST("", middleware.CheckRole(model.RoleRequester), pc.CreatePostingHandler)
	g.GET("/:id/applications", middleware.CheckRole(model.RoleAdmin, model.RoleRequester), pc.GetApplications)
	g.GET("/:id/summary", middleware.CheckRole(model.RoleAdmin, model.RoleRequester), pc.GetSummary)

	admin := g.Group("/:id", middleware.CheckRole(model.RoleAdmin))
	admin.GET("/archive", pc.GetArchive)
	admin.PATCH("/hold", pc.HoldPosting)
	admin.PATCH("/unhold", pc.UnholdPosting)
	admin.PATCH("/close", pc.ClosePosting)
	admin.PATCH("/sync", pc.SyncPosting)
	return r
}

func token(t *testing.T, user model.User) string {
	t.Helper()
	tok, err := auth.GetAccessToken(t, testDB, user.Username, database.TestSeedPassword)
	require.NoError(t, err)
	return tok
}

// newPosting creates a fresh posting of requester 1 with every seeded candidate applied
func newPosting(t *testing.T) (*model.Posting, []*model.Application) {
	t.Helper()
	ctx := context.Background()
	p, err := testEngine.CreatePosting(ctx, database.TestUserRequester1.ID, model.EditablePostingInfo{
		Kind:  model.PostingKindTutoring,
		Title: "Physics tutor " + t.Name(),
	})
	require.NoError(t, err)

	var apps []*model.Application
	for _, c := range []model.User{database.TestUserCandidate1, database.TestUserCandidate2, database.TestUserCandidate3} {
		app, err := testEngine.Apply(ctx, p.ID, c.ID, "")
		require.NoError(t, err)
		apps = append(apps, app)
	}
	return p, apps
}

func TestCreatePostingHandler_Success(t *testing.T) {
	r := setupRouter()
	body := gin.H{
		"kind":     "project",
		"title":    "Mobile app prototype",
		"location": "Remote",
		"tags":     []string{"flutter"},
	}

	rec, resp := testutil.MakeJSONRequest(body, token(t, database.TestUserRequester2), r, "/posting", http.MethodPost)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, database.TestUserRequester2.ID.String(), resp["owner_id"])
	assert.Equal(t, model.PostingStatusOpen, resp["status"])
	assert.Equal(t, []any{"flutter"}, resp["tags"])
}

func TestCreatePostingHandler_InvalidBody(t *testing.T) {
	r := setupRouter()
	tok := token(t, database.TestUserRequester1)

	rec, resp := testutil.MakeJSONRequest(gin.H{"kind": "catering", "title": "x"}, tok, r, "/posting", http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp["code"])

	rec, _ = testutil.MakeJSONRequest(gin.H{"kind": "project"}, tok, r, "/posting", http.MethodPost)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePostingHandler_CandidateForbidden(t *testing.T) {
	r := setupRouter()
	body := gin.H{"kind": "tutoring", "title": "I want to teach"}

	rec, _ := testutil.MakeJSONRequest(body, token(t, database.TestUserCandidate1), r, "/posting", http.MethodPost)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetPostingByID(t *testing.T) {
	r := setupRouter()
	tok := token(t, database.TestUserCandidate1)

	rec, resp := testutil.MakeJSONRequest(nil, tok, r, fmt.Sprintf("/posting/%d", database.TestPosting1.ID), http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, database.TestPosting1.Title, resp["title"])

	rec, resp = testutil.MakeJSONRequest(nil, tok, r, "/posting/999999", http.MethodGet)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp["code"])

	rec, _ = testutil.MakeJSONRequest(nil, tok, r, "/posting/abc", http.MethodGet)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPostings_Filters(t *testing.T) {
	r := setupRouter()

	rec, posts := testutil.MakeJSONListRequest(token(t, database.TestUserRequester1), r, "/posting?owner=me&kind=project")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, posts)
	for _, p := range posts {
		assert.Equal(t, database.TestUserRequester1.ID.String(), p["owner_id"])
		assert.Equal(t, model.PostingKindProject, p["kind"])
	}

	rec, posts = testutil.MakeJSONListRequest(token(t, database.TestUserCandidate1), r, "/posting?search=landing")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, posts)
	assert.Contains(t, posts[0]["title"], "Landing")

	rec, _ = testutil.MakeJSONListRequest(token(t, database.TestUserCandidate1), r, "/posting?owner=nobody")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetApplications_Access(t *testing.T) {
	r := setupRouter()
	p, apps := newPosting(t)
	_, err := testEngine.Approve(context.Background(), apps[1].ID, database.TestAdminUser.ID)
	require.NoError(t, err)
	endpoint := fmt.Sprintf("/posting/%d/applications", p.ID)

	t.Run("owner sees all", func(t *testing.T) {
		rec, list := testutil.MakeJSONListRequest(token(t, database.TestUserRequester1), r, endpoint)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, list, 3)
	})

	t.Run("admin filters cascade", func(t *testing.T) {
		rec, list := testutil.MakeJSONListRequest(token(t, database.TestAdminUser), r, endpoint+"?auto_declined=true")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, list, 2)
		for _, a := range list {
			assert.Equal(t, model.ApplicationStatusDeclined, a["status"])
		}

		rec, list = testutil.MakeJSONListRequest(token(t, database.TestAdminUser), r,
			fmt.Sprintf("%s?candidate=%s", endpoint, database.TestUserCandidate2.ID))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, list, 1)
		assert.Equal(t, model.ApplicationStatusApproved, list[0]["status"])
	})

	t.Run("other requester forbidden", func(t *testing.T) {
		rec, _ := testutil.MakeJSONListRequest(token(t, database.TestUserRequester2), r, endpoint)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("candidate forbidden", func(t *testing.T) {
		rec, _ := testutil.MakeJSONListRequest(token(t, database.TestUserCandidate1), r, endpoint)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad query", func(t *testing.T) {
		rec, _ := testutil.MakeJSONListRequest(token(t, database.TestAdminUser), r, endpoint+"?auto_declined=maybe")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetSummaryAndArchive(t *testing.T) {
	r := setupRouter()
	p, apps := newPosting(t)
	_, err := testEngine.Approve(context.Background(), apps[0].ID, database.TestAdminUser.ID)
	require.NoError(t, err)

	rec, summary := testutil.MakeJSONRequest(nil, token(t, database.TestUserRequester1), r, fmt.Sprintf("/posting/%d/summary", p.ID), http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PostingStatusMatched, summary["status"])
	assert.Equal(t, float64(3), summary["total"])
	assert.Equal(t, float64(2), summary["auto_declined"])

	rec, entries := testutil.MakeJSONListRequest(token(t, database.TestAdminUser), r, fmt.Sprintf("/posting/%d/archive", p.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, entries, 2)

	rec, _ = testutil.MakeJSONListRequest(token(t, database.TestUserRequester1), r, fmt.Sprintf("/posting/%d/archive", p.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHoldUnholdClose(t *testing.T) {
	r := setupRouter()
	p, apps := newPosting(t)
	tok := token(t, database.TestAdminUser)
	base := fmt.Sprintf("/posting/%d", p.ID)

	rec, resp := testutil.MakeJSONRequest(nil, tok, r, base+"/hold", http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.PostingStatusHold, resp["status"])
	assert.Equal(t, model.PostingStatusOpen, resp["status_before_hold"])

	rec, resp = testutil.MakeJSONRequest(nil, tok, r, base+"/hold", http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", resp["code"])
	assert.Equal(t, model.PostingStatusHold, resp["current_status"])

	// approving while held is refused
	_, err := testEngine.Approve(context.Background(), apps[0].ID, database.TestAdminUser.ID)
	assert.True(t, matching.IsKind(err, matching.KindInvalidTransition))

	rec, resp = testutil.MakeJSONRequest(nil, tok, r, base+"/unhold", http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PostingStatusOpen, resp["status"])

	rec, resp = testutil.MakeJSONRequest(nil, tok, r, base+"/close", http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PostingStatusClosed, resp["status"])

	rec, _ = testutil.MakeJSONRequest(nil, tok, r, base+"/unhold", http.MethodPatch)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = testutil.MakeJSONRequest(nil, token(t, database.TestUserRequester1), r, base+"/hold", http.MethodPatch)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSyncPosting(t *testing.T) {
	r := setupRouter()
	p, apps := newPosting(t)
	_, err := testEngine.Approve(context.Background(), apps[2].ID, database.TestAdminUser.ID)
	require.NoError(t, err)

	// drift the stored status behind the engine's back
	require.NoError(t, testDB.Model(&model.Posting{}).Where("id = ?", p.ID).Update("status", model.PostingStatusOpen).Error)

	rec, resp := testutil.MakeJSONRequest(nil, token(t, database.TestAdminUser), r, fmt.Sprintf("/posting/%d/sync", p.ID), http.MethodPatch)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PostingStatusMatched, resp["status"])

	rec, _ = testutil.MakeJSONRequest(nil, token(t, database.TestAdminUser), r, "/posting/999999/sync", http.MethodPatch)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

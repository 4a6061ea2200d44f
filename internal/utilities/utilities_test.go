package utilities

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AOTF-backend/internal/model"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("SeedPass123!")
	require.NoError(t, err)
	assert.NotEqual(t, "SeedPass123!", hashed)
	assert.True(t, VerifyPassword("SeedPass123!", hashed))
	assert.False(t, VerifyPassword("wrong", hashed))
}

func TestExtractBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"valid":     {"Bearer abc.def", "abc.def", true},
		"lowercase": {"bearer abc", "abc", true},
		"missing":   {"", "", false},
		"no token":  {"Bearer ", "", false},
		"basic":     {"Basic dXNlcg==", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
			c.Request.Header.Set("Authorization", tc.header)

			token, err := ExtractBearerToken(c)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestExtractUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := ExtractUser(c)
	assert.Error(t, err)

	c.Set("user", "not a user")
	_, err = ExtractUser(c)
	assert.Error(t, err)

	want := model.User{ID: uuid.New(), Username: "candidate_1", Role: model.RoleCandidate}
	c.Set("user", want)
	got, err := ExtractUser(c)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"AOTF-backend/internal/database"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

// GetAccessToken logs the user in through the local login handler and returns the issued token.
func GetAccessToken(
	t *testing.T,
	db *database.DBinstanceStruct,
	username string,
	password string,
) (string, error) {
	t.Helper()
	handler := NewLocalAuthHandler(db)
	rec, _, err := utilities.SimulateAPICall(handler.LocalLoginHandler, "/login", http.MethodPost, loginInfo{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	if rec.Code != http.StatusOK {
		return "", fmt.Errorf("login %s failed: status %d, body: %s", username, rec.Code, rec.Body.String())
	}

	var resp model.UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login %s returned no access token", username)
	}
	return resp.AccessToken, nil
}

// Package auth issues access tokens for locally registered users.
package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"AOTF-backend/internal/database"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

const minPasswordLength = 8

// LocalAuthHandler holds DB reference for handler methods.
type LocalAuthHandler struct {
	DB     *database.DBinstanceStruct
	Logger *zap.Logger
}

// NewLocalAuthHandler creates a new instance of LocalAuthHandler with the provided database connection.
func NewLocalAuthHandler(db *database.DBinstanceStruct) *LocalAuthHandler {
	return &LocalAuthHandler{
		DB:     db,
		Logger: zap.NewNop(),
	}
}

type registerInfo struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role" binding:"required,oneof=candidate requester"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type loginInfo struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LocalRegisterHandler creates a candidate or requester account and returns an access token.
// @Summary Register a local account
// @Description Username must not already exist and password must be at least 8 characters long
// @Tags Auth
// @Accept json
// @Produce json
// @Param Info body registerInfo true "role can be only 'candidate' or 'requester'"
// @Success 201 {object} model.UserResponse
// @Failure 400 {object} utilities.ErrorResponse "Info provided not met the condition"
// @Failure 500 {object} utilities.ErrorResponse "Database or password hashing error"
// @Router /auth/register [post]
func (lh *LocalAuthHandler) LocalRegisterHandler(c *gin.Context) {
	var info registerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Username, password, and role (only 'candidate' or 'requester') must be provided",
			Code:  "validation_error",
		})
		return
	}
	info.Username = strings.TrimSpace(info.Username)

	var existing model.User
	err := lh.DB.WithContext(c.Request.Context()).Where("username = ?", info.Username).First(&existing).Error
	switch {
	case err == nil:
		usernameTaken(c, lh.Logger, info.Username)
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Do nothing
	default:
		lh.Logger.Error("looking up username", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Database error",
		})
		return
	}

	if len(info.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Password should longer or equal to 8 characters",
			Code:  "validation_error",
		})
		return
	}

	hashedPassword, err := utilities.HashPassword(info.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Failed hash password",
		})
		return
	}

	user := model.User{
		Username:    info.Username,
		Password:    hashedPassword,
		Role:        info.Role,
		DisplayName: strings.TrimSpace(info.DisplayName),
	}
	if email := strings.TrimSpace(info.Email); email != "" {
		user.Email = &email
	}
	if err := lh.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		// a concurrent registration took the name after the lookup
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			usernameTaken(c, lh.Logger, info.Username)
			return
		}
		lh.Logger.Error("creating user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Failed to create user",
		})
		return
	}

	accessToken, err := GenerateStandardToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Failed to generate access token",
		})
		return
	}

	logAuthAttempt(lh.Logger, "local_register", "success", user.Username, user.Role)
	c.JSON(http.StatusCreated, model.UserResponse{
		User:        user,
		AccessToken: accessToken,
	})
}

// LocalLoginHandler checks the username and password and returns an access token.
// @Summary Log in with username and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param Info body loginInfo true "credentials"
// @Success 200 {object} model.UserResponse
// @Failure 400 {object} utilities.ErrorResponse "Username or password missing"
// @Failure 401 {object} utilities.ErrorResponse "Username or password is incorrect"
// @Failure 500 {object} utilities.ErrorResponse "Database error"
// @Router /auth/login [post]
func (lh *LocalAuthHandler) LocalLoginHandler(c *gin.Context) {
	var info loginInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
			Error: "Username or password is not provided",
			Code:  "validation_error",
		})
		return
	}

	var user model.User
	err := lh.DB.WithContext(c.Request.Context()).Where("username = ?", info.Username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		logAuthAttempt(lh.Logger, "local_login", "fail", info.Username, "unknown username")
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{
			Error: "Username or password is incorrect",
		})
		return
	case err == nil:
		// Do nothing
	default:
		lh.Logger.Error("looking up username", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Database error",
		})
		return
	}

	if user.Password == "" || !utilities.VerifyPassword(info.Password, user.Password) {
		logAuthAttempt(lh.Logger, "local_login", "fail", info.Username, "wrong password")
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{
			Error: "Username or password is incorrect",
		})
		return
	}

	accessToken, err := GenerateStandardToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utilities.ErrorResponse{
			Error: "Failed to generate access token",
		})
		return
	}

	logAuthAttempt(lh.Logger, "local_login", "success", user.Username, "")
	c.JSON(http.StatusOK, model.UserResponse{
		User:        user,
		AccessToken: accessToken,
	})
}

func usernameTaken(c *gin.Context, logger *zap.Logger, username string) {
	logAuthAttempt(logger, "local_register", "fail", username, "username taken")
	c.JSON(http.StatusBadRequest, utilities.ErrorResponse{
		Error: "Username already exist",
		Code:  "validation_error",
	})
}

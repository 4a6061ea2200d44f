// Package middleware contain utilities middleware code
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"AOTF-backend/internal/auth"
	"AOTF-backend/internal/database"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

// RequireAuth validates the Bearer token in the Authorization header, loads the
// user it was issued to and stores it in the context under "user".
func RequireAuth(db *database.DBinstanceStruct) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, err := utilities.ExtractBearerToken(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, utilities.ErrorResponse{
				Error: err.Error(),
			})
			return
		}

		token, err := auth.ValidatedToken(tokenString)
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: tokenErrorMessage(err),
			})
			return
		}

		claims := token.Claims.(*jwt.RegisteredClaims)
		ctx.Set("claims", claims)

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
				Error: "Invalid token subject",
			})
			return
		}

		var foundUser model.User
		if err := db.WithContext(ctx.Request.Context()).Where("id = ?", userID).First(&foundUser).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, utilities.ErrorResponse{
					Error: "User not exist",
				})
				return
			}

			_ = ctx.Error(err)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, utilities.ErrorResponse{
				Error: "Failed to retrieve user data",
			})
			return
		}

		ctx.Set("user", foundUser)
		ctx.Set("user_id", foundUser.ID.String())
		ctx.Next()
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case err == nil:
		return "Invalid access token"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Access token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid token issuer"
	default:
		return "Failed to validate token"
	}
}

// Package notification provides the administrator's inbox of withdrawal requests.
package notification

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"AOTF-backend/internal/controller"
	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/model"
)

// NotificationController handles notification endpoints
type NotificationController struct {
	Engine *matching.Engine
}

// NewNotificationController creates a new instance of NotificationController
func NewNotificationController(engine *matching.Engine) *NotificationController {
	return &NotificationController{
		Engine: engine,
	}
}

// GetNotifications lists notifications based on the given query "status" and "unread"
// @Summary Get notifications
// @Description Only admin can access this endpoint
// @Description If no query given, the server will return all notifications, newest first
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param status query string false "pending, approved or declined"
// @Param unread query boolean false "Only unread notifications if true"
// @Success 200 {array} model.Notification
// @Failure 400 {object} utilities.ErrorResponse "Invalid query"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 403 {object} utilities.ErrorResponse "Do not logged in as admin"
// @Router /notification [get]
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	filter := model.NotificationFilter{
		Status: strings.ToLower(strings.TrimSpace(c.Query("status"))),
	}
	if rawUnread := c.Query("unread"); rawUnread != "" {
		unread, err := strconv.ParseBool(rawUnread)
		if err != nil {
			controller.BadRequest(c, "unread must be true or false")
			return
		}
		filter.UnreadOnly = unread
	}

	notifications, err := nc.Engine.ListNotifications(c.Request.Context(), filter)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// MarkRead marks one notification as read
// @Summary Mark notification as read
// @Description Only admin can access this endpoint
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Notification ID"
// @Success 200 {object} model.Notification
// @Failure 404 {object} utilities.ErrorResponse "Notification not found"
// @Router /notification/{id}/read [patch]
func (nc *NotificationController) MarkRead(c *gin.Context) {
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	n, err := nc.Engine.MarkNotificationRead(c.Request.Context(), id)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// Package application provides HTTP handlers for the application lifecycle:
// applying, administrator decisions and withdrawal requests.
package application

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"AOTF-backend/internal/controller"
	"AOTF-backend/internal/declineref"
	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

// ApplicationController handles application related endpoints
type ApplicationController struct {
	Engine *matching.Engine
}

// NewApplicationController creates a new instance of ApplicationController backed by the matching engine.
func NewApplicationController(engine *matching.Engine) *ApplicationController {
	return &ApplicationController{
		Engine: engine,
	}
}

type applyRequest struct {
	PostingID uint   `json:"posting_id" binding:"required"`
	Message   string `json:"message"`
}

type declineRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type withdrawalRequest struct {
	Note string `json:"note"`
}

type resolveRequest struct {
	Decision  string `json:"decision" binding:"required"`
	AdminNote string `json:"admin_note"`
}

// DeclineResponse is returned by DeclineHandler
type DeclineResponse struct {
	ApplicationID uint              `json:"application_id"`
	Status        string            `json:"status"`
	Application   model.Application `json:"application"`
}

// ApplicationHandler handles the creation of a new application by a candidate.
// @Summary Apply to a posting
// @Description Only candidates can access this endpoint
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param application body applyRequest true "Application information"
// @Success 201 {object} model.Application "Successfully applied"
// @Failure 400 {object} utilities.ErrorResponse "Invalid request body or already applied"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 403 {object} utilities.ErrorResponse "Not logged in as candidate"
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Failure 409 {object} utilities.ErrorResponse "Posting is not open"
// @Router /application [post]
func (ac *ApplicationController) ApplicationHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		controller.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	app, err := ac.Engine.Apply(c.Request.Context(), req.PostingID, user.ID, req.Message)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// ApplicationView is an application as its candidate sees it. Posting reference tokens in the
// decline reason are listed separately and stripped from DeclineReasonText.
type ApplicationView struct {
	model.Application
	DeclineReasonText string           `json:"decline_reason_text,omitempty"`
	DeclineRefs       []declineref.Ref `json:"decline_refs,omitempty"`
}

func newApplicationView(app model.Application) ApplicationView {
	v := ApplicationView{Application: app}
	if app.DeclineReason != "" {
		v.DeclineReasonText = declineref.Plain(app.DeclineReason)
		v.DeclineRefs = declineref.Parse(app.DeclineReason)
	}
	return v
}

// GetMyApplications lists the caller's applications, newest first
// @Summary Get my applications
// @Description Only candidates can access this endpoint
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {array} ApplicationView
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Router /application/mine [get]
func (ac *ApplicationController) GetMyApplications(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	apps, err := ac.Engine.ListCandidateApplications(c.Request.Context(), user.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	views := make([]ApplicationView, 0, len(apps))
	for _, a := range apps {
		views = append(views, newApplicationView(a))
	}
	c.JSON(http.StatusOK, views)
}

// GetApplicationByID returns one application to an admin or to the candidate who owns it
// @Summary Get application by id
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Success 200 {object} ApplicationView
// @Failure 403 {object} utilities.ErrorResponse "Neither admin nor the applicant"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Router /application/{id} [get]
func (ac *ApplicationController) GetApplicationByID(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	app, err := ac.Engine.GetApplication(c.Request.Context(), id)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	if user.Role != model.RoleAdmin && app.CandidateID != user.ID {
		controller.Forbidden(c)
		return
	}
	c.JSON(http.StatusOK, newApplicationView(*app))
}

// ApproveHandler accepts the application and auto-declines every other pending one of the posting
// @Summary Approve application
// @Description Only admins can access this endpoint
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Success 200 {object} matching.ApproveResult
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Failure 409 {object} utilities.ErrorResponse "Application not pending, or posting already matched, held or closed"
// @Failure 503 {object} utilities.ErrorResponse "Concurrent updates, retry"
// @Router /application/{id}/approve [patch]
func (ac *ApplicationController) ApproveHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := ac.Engine.Approve(c.Request.Context(), id, user.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeclineHandler declines one pending application with the given reason
// @Summary Decline application
// @Description Only admins can access this endpoint
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Param body body declineRequest true "Decline reason"
// @Success 200 {object} DeclineResponse
// @Failure 400 {object} utilities.ErrorResponse "Missing or too long reason"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Failure 409 {object} utilities.ErrorResponse "Application not pending"
// @Router /application/{id}/decline [patch]
func (ac *ApplicationController) DeclineHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	var req declineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		controller.BadRequest(c, "A decline reason must be provided")
		return
	}

	app, err := ac.Engine.Decline(c.Request.Context(), id, req.Reason, user.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeclineResponse{
		ApplicationID: app.ID,
		Status:        app.Status,
		Application:   *app,
	})
}

// CompleteHandler marks an approved engagement as finished and closes its posting
// @Summary Complete application
// @Description Only admins can access this endpoint
// @Tags Application
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Success 200 {object} model.Application
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Failure 409 {object} utilities.ErrorResponse "Application not approved"
// @Router /application/{id}/complete [patch]
func (ac *ApplicationController) CompleteHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	app, err := ac.Engine.Complete(c.Request.Context(), id, user.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// RequestWithdrawalHandler lets the candidate ask to leave a pending or approved application
// @Summary Request withdrawal
// @Description Only the candidate who applied can access this endpoint
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Param body body withdrawalRequest false "Optional note, at most 500 characters"
// @Success 200 {object} matching.WithdrawalResult
// @Failure 400 {object} utilities.ErrorResponse "Note too long"
// @Failure 404 {object} utilities.ErrorResponse "Application not found"
// @Failure 409 {object} utilities.ErrorResponse "Application cannot be withdrawn from its status"
// @Router /application/{id}/withdrawal [post]
func (ac *ApplicationController) RequestWithdrawalHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	var req withdrawalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			controller.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := ac.Engine.RequestWithdrawal(c.Request.Context(), id, user.ID, req.Note)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResolveWithdrawalHandler approves or declines a pending withdrawal request
// @Summary Resolve withdrawal request
// @Description Only admins can access this endpoint
// @Tags Application
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Application ID"
// @Param body body resolveRequest true "decision is 'approve' or 'decline'"
// @Success 200 {object} matching.WithdrawalResult
// @Failure 400 {object} utilities.ErrorResponse "Invalid decision or note too long"
// @Failure 404 {object} utilities.ErrorResponse "Application or its request not found"
// @Failure 409 {object} utilities.ErrorResponse "No pending withdrawal request"
// @Router /application/{id}/withdrawal [patch]
func (ac *ApplicationController) ResolveWithdrawalHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		controller.BadRequest(c, "A decision ('approve' or 'decline') must be provided")
		return
	}
	decision, err := matching.ParseDecision(req.Decision)
	if err != nil {
		controller.RespondError(c, err)
		return
	}

	result, err := ac.Engine.ResolveWithdrawal(c.Request.Context(), id, decision, user.ID, req.AdminNote)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Package posting provides HTTP handlers for postings and their administrative overlays.
package posting

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"AOTF-backend/internal/controller"
	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

// PostingController handles posting related endpoints
type PostingController struct {
	Engine *matching.Engine
}

// NewPostingController creates a new instance of PostingController
func NewPostingController(engine *matching.Engine) *PostingController {
	return &PostingController{
		Engine: engine,
	}
}

// CreatePostingHandler handles the creation of a new posting by a requester.
// @Summary Create posting based on given json structure
// @Description Only requesters have access to this endpoint
// @Tags Posting
// @Accept json
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param Posting body model.EditablePostingInfo true "Input posting information"
// @Success 201 {object} model.Posting "Successfully create posting"
// @Failure 400 {object} utilities.ErrorResponse "Invalid authorization header, or invalid posting struct"
// @Failure 401 {object} utilities.ErrorResponse "Invalid token"
// @Failure 403 {object} utilities.ErrorResponse "Not logged in as requester"
// @Failure 500 {object} utilities.ErrorResponse "Database error"
// @Router /posting [post]
func (pc *PostingController) CreatePostingHandler(c *gin.Context) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	var info model.EditablePostingInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		controller.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	posting, err := pc.Engine.CreatePosting(c.Request.Context(), user.ID, info)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, posting)
}

// GetPostingByID returns one posting
// @Summary Get posting by id
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} model.Posting
// @Failure 400 {object} utilities.ErrorResponse "Invalid posting id"
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Router /posting/{id} [get]
func (pc *PostingController) GetPostingByID(c *gin.Context) {
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	posting, err := pc.Engine.GetPosting(c.Request.Context(), id)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posting)
}

// GetPostings lists postings that match the query
// @Summary Get postings based on query
// @Description Every query is optional
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param status query string false "open, hold, matched or closed"
// @Param kind query string false "tutoring or project"
// @Param owner query string false "Owner id, or 'me' for the caller's own postings"
// @Param search query string false "Case insensitive substring of the title"
// @Success 200 {array} model.Posting
// @Failure 400 {object} utilities.ErrorResponse "Invalid query"
// @Router /posting [get]
func (pc *PostingController) GetPostings(c *gin.Context) {
	filter := model.PostingFilter{
		Status: strings.ToLower(c.Query("status")),
		Kind:   strings.ToLower(c.Query("kind")),
		Search: strings.TrimSpace(c.Query("search")),
	}

	if rawOwner := c.Query("owner"); rawOwner != "" {
		var owner uuid.UUID
		if rawOwner == "me" {
			user, err := utilities.ExtractUser(c)
			if err != nil {
				c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
				return
			}
			owner = user.ID
		} else {
			parsed, err := uuid.Parse(rawOwner)
			if err != nil {
				controller.BadRequest(c, "owner must be a user id or 'me'")
				return
			}
			owner = parsed
		}
		filter.OwnerID = &owner
	}

	postings, err := pc.Engine.ListPostings(c.Request.Context(), filter)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, postings)
}

// GetApplications lists the applications of a posting
// @Summary Get applications of a posting
// @Description Only admins and the posting owner can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Param status query string false "Application status"
// @Param candidate query string false "Candidate id"
// @Param auto_declined query boolean false "Only records declined (or not) by a cascade"
// @Success 200 {array} model.Application
// @Failure 400 {object} utilities.ErrorResponse "Invalid query"
// @Failure 403 {object} utilities.ErrorResponse "Neither admin nor owner"
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Router /posting/{id}/applications [get]
func (pc *PostingController) GetApplications(c *gin.Context) {
	posting, ok := pc.ownedPosting(c)
	if !ok {
		return
	}

	filter := model.ApplicationFilter{Status: strings.ToLower(c.Query("status"))}
	if rawCandidate := c.Query("candidate"); rawCandidate != "" {
		candidate, err := uuid.Parse(rawCandidate)
		if err != nil {
			controller.BadRequest(c, "candidate must be a user id")
			return
		}
		filter.CandidateID = &candidate
	}
	if rawAuto := c.Query("auto_declined"); rawAuto != "" {
		auto, err := strconv.ParseBool(rawAuto)
		if err != nil {
			controller.BadRequest(c, "auto_declined must be true or false")
			return
		}
		filter.AutoDeclined = &auto
	}

	apps, err := pc.Engine.ListApplications(c.Request.Context(), posting.ID, filter)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// GetArchive lists the archive entries of a posting
// @Summary Get archive of a posting
// @Description Only admins can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {array} model.ArchiveEntry
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Router /posting/{id}/archive [get]
func (pc *PostingController) GetArchive(c *gin.Context) {
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}
	if _, err := pc.Engine.GetPosting(c.Request.Context(), id); err != nil {
		controller.RespondError(c, err)
		return
	}

	entries, err := pc.Engine.ListArchive(c.Request.Context(), id)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetSummary counts the applications of a posting per status
// @Summary Get application counts of a posting
// @Description Only admins and the posting owner can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} matching.PostingSummary
// @Failure 403 {object} utilities.ErrorResponse "Neither admin nor owner"
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Router /posting/{id}/summary [get]
func (pc *PostingController) GetSummary(c *gin.Context) {
	posting, ok := pc.ownedPosting(c)
	if !ok {
		return
	}

	summary, err := pc.Engine.Summary(c.Request.Context(), posting.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// HoldPosting puts the posting on hold
// @Summary Put posting on hold
// @Description Only admins can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} model.Posting
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Failure 409 {object} utilities.ErrorResponse "Posting already on hold or closed"
// @Router /posting/{id}/hold [patch]
func (pc *PostingController) HoldPosting(c *gin.Context) {
	pc.adminChange(c, pc.Engine.Hold)
}

// UnholdPosting lifts the hold
// @Summary Lift hold of a posting
// @Description Only admins can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} model.Posting
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Failure 409 {object} utilities.ErrorResponse "Posting is not on hold"
// @Router /posting/{id}/unhold [patch]
func (pc *PostingController) UnholdPosting(c *gin.Context) {
	pc.adminChange(c, pc.Engine.Unhold)
}

// ClosePosting closes the posting for good
// @Summary Close posting
// @Description Only admins can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} model.Posting
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Failure 409 {object} utilities.ErrorResponse "Posting already closed"
// @Router /posting/{id}/close [patch]
func (pc *PostingController) ClosePosting(c *gin.Context) {
	pc.adminChange(c, pc.Engine.Close)
}

// SyncPosting recomputes open or matched from the applications
// @Summary Recompute posting status
// @Description Only admins can access this endpoint
// @Tags Posting
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Posting ID"
// @Success 200 {object} model.Posting
// @Failure 404 {object} utilities.ErrorResponse "Posting not found"
// @Failure 500 {object} utilities.ErrorResponse "More than one application holds the match"
// @Router /posting/{id}/sync [patch]
func (pc *PostingController) SyncPosting(c *gin.Context) {
	pc.adminChange(c, pc.Engine.SyncPosting)
}

type postingChange func(ctx context.Context, postingID uint, adminID uuid.UUID) (*model.Posting, error)

func (pc *PostingController) adminChange(c *gin.Context, change postingChange) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return
	}

	posting, err := change(c.Request.Context(), id, user.ID)
	if err != nil {
		controller.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posting)
}

// ownedPosting loads the posting of the :id parameter and checks that the caller
// is an admin or its owner. It writes the response itself when it returns false.
func (pc *PostingController) ownedPosting(c *gin.Context) (*model.Posting, bool) {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return nil, false
	}
	id, ok := controller.ParseID(c, "id")
	if !ok {
		return nil, false
	}

	posting, err := pc.Engine.GetPosting(c.Request.Context(), id)
	if err != nil {
		controller.RespondError(c, err)
		return nil, false
	}
	if user.Role != model.RoleAdmin && posting.OwnerID != user.ID {
		controller.Forbidden(c)
		return nil, false
	}
	return posting, true
}

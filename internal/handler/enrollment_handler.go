package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studygrouphq/enrollment-api/internal/service"
	appErrors "github.com/studygrouphq/enrollment-api/pkg/errors"
	"github.com/studygrouphq/enrollment-api/pkg/response"
)

// EnrollmentHandler exposes the enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	waitlist    *service.WaitlistService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, waitlist *service.WaitlistService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, waitlist: waitlist}
}

// Create godoc
// @Summary Enroll a student into a group
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Withdraw godoc
// @Summary Withdraw an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	enrollment, err := h.enrollments.Withdraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ChangeGroup godoc
// @Summary Move an active enrollment to another group
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ChangeGroupRequest true "Group change payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/group [put]
func (h *EnrollmentHandler) ChangeGroup(c *gin.Context) {
	var req service.ChangeGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.ChangeGroup(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// QueuePosition godoc
// @Summary Current waiting-list position of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/queue-position [get]
func (h *EnrollmentHandler) QueuePosition(c *gin.Context) {
	position, err := h.waitlist.GetQueuePosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"position": position}, nil)
}

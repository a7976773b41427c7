package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studygrouphq/enrollment-api/internal/service"
	"github.com/studygrouphq/enrollment-api/pkg/response"
)

// WaitlistHandler exposes waiting-list endpoints.
type WaitlistHandler struct {
	waitlist *service.WaitlistService
	exports  *service.ExportService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService, exports *service.ExportService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist, exports: exports}
}

// ListByGroup godoc
// @Summary Waiting list of a group, ascending by position
// @Tags Waiting list
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/waitlist [get]
func (h *WaitlistHandler) ListByGroup(c *gin.Context) {
	enrollments, err := h.waitlist.ListByGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// ListByStudent godoc
// @Summary Waiting-list entries held by a student across groups
// @Tags Waiting list
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/waitlist [get]
func (h *WaitlistHandler) ListByStudent(c *gin.Context) {
	enrollments, err := h.waitlist.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Leave godoc
// @Summary Leave the waiting list voluntarily
// @Tags Waiting list
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /waitlist/{id} [delete]
func (h *WaitlistHandler) Leave(c *gin.Context) {
	enrollment, err := h.waitlist.Leave(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// PromoteNext godoc
// @Summary Promote the head of a group's waiting list
// @Tags Waiting list
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/waitlist/promote [post]
func (h *WaitlistHandler) PromoteNext(c *gin.Context) {
	enrollment, err := h.waitlist.PromoteNext(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollment == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Drain godoc
// @Summary Promote waiters while the group has free seats
// @Tags Waiting list
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/waitlist/drain [post]
func (h *WaitlistHandler) Drain(c *gin.Context) {
	promoted, err := h.waitlist.DrainQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"promoted": promoted}, nil)
}

// Export godoc
// @Summary Export a group's waiting-list roster
// @Tags Waiting list
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Group ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /groups/{id}/waitlist/export [get]
func (h *WaitlistHandler) Export(c *gin.Context) {
	result, err := h.exports.BuildRoster(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

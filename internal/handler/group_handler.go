package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studygrouphq/enrollment-api/internal/service"
	"github.com/studygrouphq/enrollment-api/pkg/response"
)

// GroupHandler exposes read-only group inspection endpoints.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler constructs GroupHandler.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// Get godoc
// @Summary Group detail
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Occupancy godoc
// @Summary Derived seat usage of a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id}/occupancy [get]
func (h *GroupHandler) Occupancy(c *gin.Context) {
	occupancy, err := h.groups.Occupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occupancy, nil)
}

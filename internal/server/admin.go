package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	calendardomain "github.com/smallbiznis/sellerflow/internal/calendar/domain"
)

type listApprovalRulesQuery struct {
	ActiveOnly bool `form:"active_only"`
}

func (s *Server) ListApprovalRules(c *gin.Context) {
	var query listApprovalRulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.ruleSvc.List(c.Request.Context(), query.ActiveOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetApprovalRule(c *gin.Context) {
	resp, err := s.ruleSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateApprovalRule(c *gin.Context) {
	var req approvalruledomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateApprovalRule(c *gin.Context) {
	var req approvalruledomain.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBusinessHours(c *gin.Context) {
	resp, err := s.calendarSvc.ListWindows(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type replaceBusinessHoursRequest struct {
	Windows []calendardomain.WindowRequest `json:"windows"`
}

func (s *Server) ReplaceBusinessHours(c *gin.Context) {
	var req replaceBusinessHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.calendarSvc.ReplaceWindows(c.Request.Context(), req.Windows)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

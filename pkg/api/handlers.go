package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4sgupta828/oats/pkg/models"
	"github.com/4sgupta828/oats/pkg/orchestrator"
	"github.com/4sgupta828/oats/pkg/services"
	"github.com/4sgupta828/oats/pkg/version"
)

func (s *Server) handleInvestigate(c *gin.Context) {
	var req models.InvestigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "malformed request", Detail: err.Error(),
		})
		return
	}
	if req.Goal == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "malformed request", Detail: "goal is required",
		})
		return
	}
	if req.TurnBudget < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "malformed request", Detail: "turn_budget must be positive",
		})
		return
	}

	inv, err := s.svc.Create(c.Request.Context(), req.Goal, req.TargetNamespace, req.TurnBudget)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "orchestrator unavailable", Detail: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.InvestigateResponse{
		InvestigationID: inv.ID,
		JobName:         inv.JobName,
		LogStreamHint:   fmt.Sprintf("kubectl logs -n %s -f job/%s", inv.Namespace, inv.JobName),
	})
}

func (s *Server) handleGetInvestigation(c *gin.Context) {
	inv, err := s.svc.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.InvestigationStatusResponse{
		State:      inv.State,
		CreatedAt:  inv.CreatedAt,
		TerminalAt: inv.TerminalAt,
		Error:      inv.Error,
	})
}

func (s *Server) handleListInvestigations(c *gin.Context) {
	list := s.svc.List()
	c.JSON(http.StatusOK, models.InvestigationListResponse{
		Investigations: list,
		TotalCount:     len(list),
	})
}

func (s *Server) handleDeleteInvestigation(c *gin.Context) {
	err := s.svc.Cancel(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, services.ErrInvestigationNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Detail: err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "orchestrator unavailable", Detail: err.Error(),
		})
	}
}

func (s *Server) handleInvestigationLogs(c *gin.Context) {
	evs, err := s.svc.ReplayLogs(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"events": evs, "total_count": len(evs)})
	case errors.Is(err, services.ErrInvestigationNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Detail: err.Error()})
	case errors.Is(err, orchestrator.ErrJobNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "logs unavailable",
			Detail: "worker job no longer exists; the orchestrator's retention TTL has likely expired",
		})
	default:
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "orchestrator unavailable", Detail: err.Error(),
		})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	list := s.svc.List()
	running := 0
	for _, inv := range list {
		if !inv.State.IsTerminal() {
			running++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                 "healthy",
		"version":                version.Full(),
		"investigations_total":   len(list),
		"investigations_running": running,
	})
}

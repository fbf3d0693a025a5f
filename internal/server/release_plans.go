package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	releaseplandomain "github.com/smallbiznis/flagship/internal/releaseplan/domain"
)

func (s *Server) ListReleasePlans(c *gin.Context) {
	featureName := strings.TrimSpace(c.Query("feature"))
	environment := strings.TrimSpace(c.Query("environment"))
	if environment == "" {
		environment = s.cfg.DefaultFlagEnvironment
	}

	plans, err := s.releasePlanSvc.GetReleasePlans(c.Request.Context(), featureName, environment)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"releasePlans": plans})
}

func (s *Server) GetReleasePlan(c *gin.Context) {
	plan, err := s.releasePlanSvc.GetReleasePlan(c.Request.Context(), c.Param("planId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

func (s *Server) GetActivePlanStrategies(c *gin.Context) {
	strategies, err := s.releasePlanSvc.GetActiveStrategiesForPlan(c.Request.Context(), c.Param("planId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

func (s *Server) ActivatePlan(c *gin.Context) {
	activated, err := s.releasePlanSvc.Activate(c.Request.Context(), c.Param("planId"), actingUser(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activated": len(activated)})
}

func (s *Server) DeactivatePlan(c *gin.Context) {
	removed, err := s.releasePlanSvc.Deactivate(c.Request.Context(), c.Param("planId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": len(removed)})
}

func (s *Server) StartMilestone(c *gin.Context) {
	transition, err := s.releasePlanSvc.StartMilestone(
		c.Request.Context(),
		c.Param("planId"),
		c.Param("milestoneId"),
		actingUser(c),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transitionResponse(transition))
}

// AttachPlanSegments re-copies the active milestone's segment attachments for
// a plan whose activation failed between the strategy and segment copies.
func (s *Server) AttachPlanSegments(c *gin.Context) {
	attached, err := s.releasePlanSvc.InsertAllMilestoneSegmentsForPlan(c.Request.Context(), c.Param("planId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"segmentsAttached": attached})
}

func (s *Server) AttachMilestoneSegments(c *gin.Context) {
	attached, err := s.releasePlanSvc.ActivateSegments(c.Request.Context(), c.Param("milestoneId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"segmentsAttached": attached})
}

func actingUser(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-ID"))
}

func transitionResponse(t *releaseplandomain.MilestoneTransition) gin.H {
	resp := gin.H{
		"planId":           t.PlanID,
		"toMilestoneId":    t.ToMilestoneID,
		"deactivated":      t.DeactivatedCount,
		"activated":        t.ActivatedCount,
		"segmentsAttached": t.SegmentsAttached,
	}
	if t.FromMilestoneID != nil {
		resp["fromMilestoneId"] = *t.FromMilestoneID
	}
	return resp
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	trustrankdomain "github.com/vouchnet/vouchnet/internal/trustrank/domain"
)

func (s *Server) LatestRanking(c *gin.Context) {
	resp, err := s.trustrankSvc.LatestRanking(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RankingHistory(c *gin.Context) {
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	resp, err := s.trustrankSvc.History(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecomputeTrust(c *gin.Context) {
	resp, err := s.trustrankSvc.Recompute(c.Request.Context(), trustrankdomain.TriggerManual)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileRelationships(c *gin.Context) {
	removed, err := s.relationshipSvc.Reconcile(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"removed": removed}})
}

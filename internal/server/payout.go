package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type computeSplitsRequest struct {
	TotalAmount int64 `json:"total_amount"`
}

// ComputePayoutSplits divides a hiring bonus across the referral chain and
// returns the per-participant shares. The computation is read-only.
func (s *Server) ComputePayoutSplits(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req computeSplitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.payoutSvc.ComputeSplits(c.Request.Context(), id, req.TotalAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	referraldomain "github.com/vouchnet/vouchnet/internal/referral/domain"
)

type submitReferralRequest struct {
	JobID          string `json:"job_id"`
	CandidateEmail string `json:"candidate_email"`
	ReferrerID     string `json:"referrer_id"`
}

func (s *Server) SubmitReferral(c *gin.Context) {
	var req submitReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	referrerID, err := parseID(req.ReferrerID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.referralSvc.Submit(c.Request.Context(), referraldomain.SubmitRequest{
		JobID:          strings.TrimSpace(req.JobID),
		CandidateEmail: strings.TrimSpace(req.CandidateEmail),
		ReferrerID:     referrerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReferralByID(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.referralSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetReferralChain(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	chain, err := s.referralSvc.Chain(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"chain_path": chain}})
}

type updateReferralStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateReferralStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req updateReferralStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status := referraldomain.ReferralStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	resp, err := s.referralSvc.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

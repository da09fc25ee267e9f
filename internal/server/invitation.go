package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/vouchnet/vouchnet/internal/invitation/domain"
)

type sendInvitationRequest struct {
	SenderID       string `json:"sender_id"`
	RecipientEmail string `json:"recipient_email"`
	TrustScore     int64  `json:"trust_score"`
}

func (s *Server) SendInvitation(c *gin.Context) {
	var req sendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	senderID, err := parseID(req.SenderID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invitationSvc.Send(c.Request.Context(), invitationdomain.SendRequest{
		SenderID:       senderID,
		RecipientEmail: strings.TrimSpace(req.RecipientEmail),
		TrustScore:     req.TrustScore,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvitationByCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invitationSvc.GetByCode(c.Request.Context(), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type acceptInvitationRequest struct {
	Name string `json:"name"`
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invitationSvc.Accept(c.Request.Context(), invitationdomain.AcceptRequest{
		Code: code,
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

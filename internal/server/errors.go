package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/vouchnet/vouchnet/internal/account/domain"
	invitationdomain "github.com/vouchnet/vouchnet/internal/invitation/domain"
	payoutdomain "github.com/vouchnet/vouchnet/internal/payout/domain"
	referraldomain "github.com/vouchnet/vouchnet/internal/referral/domain"
	relationshipdomain "github.com/vouchnet/vouchnet/internal/relationship/domain"
	trustledgerdomain "github.com/vouchnet/vouchnet/internal/trustledger/domain"
	trustrankdomain "github.com/vouchnet/vouchnet/internal/trustrank/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

// ErrorHandlingMiddleware converts domain errors recorded on the gin context
// into a uniform JSON error envelope.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, invitationdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, accountdomain.ErrInvalidEmail),
		errors.Is(err, accountdomain.ErrInvalidTier),
		errors.Is(err, trustledgerdomain.ErrInvalidAmount),
		errors.Is(err, trustledgerdomain.ErrInsufficientTrust),
		errors.Is(err, invitationdomain.ErrInvalidTrustScore),
		errors.Is(err, invitationdomain.ErrInvalidRecipient),
		errors.Is(err, invitationdomain.ErrSelfInvitation),
		errors.Is(err, invitationdomain.ErrNotPending),
		errors.Is(err, relationshipdomain.ErrInvalidPair),
		errors.Is(err, relationshipdomain.ErrSelfRelationship),
		errors.Is(err, referraldomain.ErrInvalidRequest),
		errors.Is(err, referraldomain.ErrChainTooDeep),
		errors.Is(err, referraldomain.ErrInvalidStatusTransition),
		errors.Is(err, payoutdomain.ErrInvalidAmount),
		errors.Is(err, payoutdomain.ErrEmptyChain),
		errors.Is(err, payoutdomain.ErrReferralNotHired):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, trustledgerdomain.ErrAccountNotFound),
		errors.Is(err, invitationdomain.ErrNotFound),
		errors.Is(err, referraldomain.ErrNotFound),
		errors.Is(err, trustrankdomain.ErrNoSnapshot),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrEmailExists),
		errors.Is(err, relationshipdomain.ErrDuplicateRelationship),
		errors.Is(err, referraldomain.ErrDuplicateReferral):
		return true
	default:
		return false
	}
}

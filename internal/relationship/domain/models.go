package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EdgeStatus string

const (
	EdgeStatusPending   EdgeStatus = "PENDING"
	EdgeStatusConfirmed EdgeStatus = "CONFIRMED"
)

// Edge is a vouching relationship between two accounts. The pair is stored
// normalized (UserLow < UserHigh) so each unordered pair maps to one row.
// Weight is the sender-side trust allocation in ledger units and is only
// meaningful once the edge is CONFIRMED.
type Edge struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserLow     snowflake.ID `gorm:"not null;uniqueIndex:ux_relationship_edges_pair,priority:1" json:"user_low"`
	UserHigh    snowflake.ID `gorm:"not null;uniqueIndex:ux_relationship_edges_pair,priority:2" json:"user_high"`
	Status      EdgeStatus   `gorm:"type:text;not null" json:"status"`
	Weight      int64        `gorm:"not null" json:"weight"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}

// TableName sets the database table name.
func (Edge) TableName() string { return "relationship_edges" }

// NormalizePair orders an unordered account pair for storage.
func NormalizePair(a, b snowflake.ID) (low, high snowflake.ID, err error) {
	if a == 0 || b == 0 {
		return 0, 0, ErrInvalidPair
	}
	if a == b {
		return 0, 0, ErrSelfRelationship
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}

var (
	ErrInvalidPair           = errors.New("invalid_relationship_pair")
	ErrSelfRelationship      = errors.New("self_relationship")
	ErrDuplicateRelationship = errors.New("duplicate_relationship")
)

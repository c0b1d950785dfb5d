package models

import (
	"github.com/google/uuid"
)

// Report statuses.
const (
	ReportStatusOpen     = "open"
	ReportStatusResolved = "resolved"
)

// Rating is a score left by a buyer for a seller after a deal. One rating per
// (rater, ad).
type Rating struct {
	BaseModel
	RaterID     uuid.UUID `gorm:"type:uuid;index:idx_rating_rater_ad,unique" json:"rater_id"`
	AdID        uuid.UUID `gorm:"type:uuid;index:idx_rating_rater_ad,unique" json:"ad_id"`
	RatedUserID uuid.UUID `gorm:"type:uuid;index" json:"rated_user_id"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment"`
}

// Report flags a listing for moderator review.
type Report struct {
	BaseModel
	AdID       uuid.UUID `gorm:"type:uuid;index" json:"ad_id"`
	ReporterID uuid.UUID `gorm:"type:uuid;index" json:"reporter_id"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details"`
	Status     string    `gorm:"default:open" json:"status"`
}

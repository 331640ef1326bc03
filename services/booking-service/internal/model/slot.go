package model

// TimeSlot is a candidate interval. Score, Reason and Tags are advisory annotations added
// after legality is decided.
type TimeSlot struct {
	StartTime         Clock    `json:"start_time"`
	EndTime           Clock    `json:"end_time"`
	IsAvailable       bool     `json:"is_available"`
	Score             *int     `json:"score,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	AvailabilityID    string   `json:"availability_id,omitempty"`
	UnavailableReason string   `json:"unavailable_reason,omitempty"`
}

// Unavailability reasons, in the order the filter applies its rules.
const (
	ReasonNonWorkingDay = "non_working_day"
	ReasonOutsideHours  = "outside_working_hours"
	ReasonBlocked       = "blocked"
	ReasonOverlap       = "overlaps_appointment"
	ReasonPast          = "in_past"
	ReasonOffGrid       = "off_grid"
)

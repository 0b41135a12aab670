package journal

// #region imports
import (
	"time"
)

// #endregion

// #region guard-entry

// GuardEntry is one persisted guard decision.
type GuardEntry struct {
	ID         int64
	ActivityID string
	StepIndex  int
	Confidence float64
	Action     string
	Band       string
	Reason     string
	MatchCount int
	ObservedAt time.Time
	CreatedAt  time.Time
}

// #endregion guard-entry

// #region route-entry

// RouteEntry is one persisted routing decision with its answer timing.
type RouteEntry struct {
	ID        int64
	QueryID   string
	QueryText string
	Mode      string
	Score     float64
	Class     string
	Reason    string
	ElapsedMs int64
	CreatedAt time.Time
}

// #endregion route-entry

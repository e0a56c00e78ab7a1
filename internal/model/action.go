package model

import "time"

// PendingAction is a row of the externally produced pending-actions table
type PendingAction struct {
	UserID            int64   `json:"user_id"`
	LatestScreenName  string  `json:"latest_screen_name"`
	DaysSinceLastPost float64 `json:"days_since_last_tweet"`
	BaselineDailyRate float64 `json:"average_daily_activity_baseline"`
	RecentDailyRate   float64 `json:"average_daily_activity_recent"`
	Actioned          bool    `json:"actioned"`
}

// ActivityRecord is the audit row appended for every outreach that was sent
type ActivityRecord struct {
	ActionPostID   int64  `json:"action_status_id"`
	ActionedUserID int64  `json:"actioned_user_id"`
	PayloadText    string `json:"payload"`
	CreatedAt      string `json:"created_at"`
}

// SendResult identifies a published outreach post
type SendResult struct {
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
}

// TriggerContext describes what started a pipeline run. It is only logged and recorded.
type TriggerContext struct {
	EventID   string `json:"event_id"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Empty reports whether no trigger information was supplied
func (t TriggerContext) Empty() bool {
	return t.EventID == "" && t.Timestamp == "" && t.Source == ""
}

// NewCronTrigger builds the trigger context for a scheduled run
func NewCronTrigger(eventID, pipeline string, at time.Time) TriggerContext {
	return TriggerContext{
		EventID:   eventID,
		Timestamp: at.UTC().Format(time.RFC3339),
		Source:    "cron:" + pipeline,
	}
}

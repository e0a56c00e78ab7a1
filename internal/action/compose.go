package action

import (
	"fmt"

	"ruok-relay-go/internal/model"
)

// DefaultReferenceLink is appended to every outreach message unless configured otherwise
const DefaultReferenceLink = "https://twitter.com/clairebcarroll/status/1423628154065899525"

// Compose renders the outreach message for a pending action
func Compose(row model.PendingAction, link string) string {
	text := fmt.Sprintf("@%s r u okay? Haven't heard from you in %.0f days! "+
		"You normally tweet %.1f times per day but only %.1f this past week...",
		row.LatestScreenName, row.DaysSinceLastPost, row.BaselineDailyRate, row.RecentDailyRate)

	if link != "" {
		text += " " + link
	}
	return text
}

package platform

import (
	"fmt"
	"time"
)

// MentionEveryone is the whole-audience mention token.
const MentionEveryone = "@everyone"

// MentionUser renders a user mention token.
func MentionUser(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatRelative renders a timestamp the client displays as "in 2 hours".
func FormatRelative(t time.Time) string {
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

// FormatShortTime renders a timestamp the client displays as "09:30".
func FormatShortTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:t>", t.Unix())
}

// FormatShortDate renders a timestamp the client displays as "12/02/2024".
func FormatShortDate(t time.Time) string {
	return fmt.Sprintf("<t:%d:d>", t.Unix())
}

package domain

import (
	"fmt"
	"strings"
)

// NotificationFor builds the user-facing message for a record.
func NotificationFor(rec AlertRecord) Notification {
	return Notification{
		FeedType: rec.FeedType,
		DedupKey: rec.DedupKey,
		Title:    rec.Title,
		Body:     notificationBody(rec),
	}
}

func notificationBody(rec AlertRecord) string {
	s := rec.Summary
	switch rec.FeedType {
	case FeedEarthquake:
		body := fmt.Sprintf("M%s, depth %s, max intensity %s",
			s[FieldMagnitude], s[FieldDepth], s[FieldMaxSeverity])
		if s[FieldTsunami] == "true" {
			body += ". Tsunami warning or watch in effect"
		}
		return body
	case FeedEEW:
		body := fmt.Sprintf("Report %s, M%s, depth %s, estimated max intensity %s",
			s[FieldSerial], s[FieldMagnitude], s[FieldDepth], s[FieldMaxSeverity])
		if areas := s[FieldWarnedAreas]; areas != "" {
			body += ". Warned areas: " + areas
		}
		return body
	default:
		return strings.TrimSpace(s[FieldBody])
	}
}

package bucketnotify

import "github.com/mashiike/bucketnotify/pkg/bucketnotifyevent"

// DetailType constants for EventBridge events.
const (
	DetailTypeBucketNotificationBound   = "Bucket Notification Bound"
	DetailTypeBucketNotificationCleared = "Bucket Notification Cleared"
)

// DetailType returns the EventBridge detail-type for the detail's action.
func DetailType(d *bucketnotifyevent.Detail) string {
	if d.Action == bucketnotifyevent.ActionClear {
		return DetailTypeBucketNotificationCleared
	}
	return DetailTypeBucketNotificationBound
}

func eventSource(sourcePrefix string, d *bucketnotifyevent.Detail) string {
	return sourcePrefix + "/" + d.Bucket
}

// Package bucketnotifyevent provides types for bucketnotify EventBridge event payloads.
// These types can be used in Lambda functions to unmarshal bucketnotify audit events.
//
//	func handler(ctx context.Context, event bucketnotifyevent.Event) error {
//	    fmt.Println(event.DetailType)
//	    fmt.Println(event.Detail.Bucket)
//	}
package bucketnotifyevent

import "time"

// Action is what happened to the bucket's notification configuration.
type Action string

const (
	ActionBind  Action = "bind"
	ActionClear Action = "clear"
)

// Event represents the full EventBridge event from bucketnotify.
type Event struct {
	Version    string    `json:"version"`
	ID         string    `json:"id"`
	DetailType string    `json:"detail-type"`
	Source     string    `json:"source"`
	AccountID  string    `json:"account"`
	Time       time.Time `json:"time"`
	Region     string    `json:"region"`
	Resources  []string  `json:"resources"`
	Detail     Detail    `json:"detail"`
}

// Detail is the event detail payload.
type Detail struct {
	Subject string    `json:"subject"`
	Action  Action    `json:"action"`
	Bucket  string    `json:"bucket"`
	Target  *Target   `json:"target,omitempty"`
	Time    time.Time `json:"time"`
}

// Target is the Lambda function installed as the bucket's only notification
// destination. It is nil for ActionClear.
type Target struct {
	FunctionARN string   `json:"functionArn"`
	Events      []string `json:"events"`
}

// BucketARN returns the ARN of the bucket the detail refers to.
func (d *Detail) BucketARN() string {
	return "arn:aws:s3:::" + d.Bucket
}

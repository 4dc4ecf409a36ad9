package bucketnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/gofrs/flock"
	"github.com/mashiike/bucketnotify/pkg/bucketnotifyevent"
	"github.com/shogo82148/go-retry"
)

// NotifierOption contains configuration for audit event delivery.
//
// Supported notifier types:
//   - "none": Audit events are discarded (default)
//   - "eventbridge": Sends events to Amazon EventBridge
//   - "file": Appends events to a local JSON file (suitable for development)
type NotifierOption struct {
	Type      string `help:"audit notifier type" default:"none" enum:"none,eventbridge,file" env:"BUCKETNOTIFY_NOTIFIER_TYPE"`
	EventBus  string `help:"event bus name (eventbridge type only)" default:"default" env:"BUCKETNOTIFY_EVENTBRIDGE_EVENT_BUS"`
	EventFile string `help:"event file path (file type only)" default:"bucketnotify.json" env:"BUCKETNOTIFY_EVENT_FILE"`
	LockFile  string `help:"event file lock path (file type only)" default:"bucketnotify.lock" env:"BUCKETNOTIFY_EVENT_LOCK_FILE"`
}

// Notifier delivers an audit event after a notification configuration write
// succeeded. Delivery failures never change the lifecycle result.
type Notifier interface {
	SendDetail(context.Context, *bucketnotifyevent.Detail) error
}

// NewNotifier creates a Notifier implementation based on the configuration type.
func NewNotifier(_ context.Context, cfg NotifierOption, awsCfg aws.Config) (Notifier, error) {
	switch cfg.Type {
	case "none", "":
		return NopNotifier{}, nil
	case "eventbridge":
		return NewEventBridgeNotifier(eventbridge.NewFromConfig(awsCfg), cfg.EventBus), nil
	case "file":
		return NewFileNotifier(cfg.EventFile, cfg.LockFile), nil
	}
	return nil, fmt.Errorf("unknown notifier type: %s", cfg.Type)
}

type NopNotifier struct{}

func (NopNotifier) SendDetail(context.Context, *bucketnotifyevent.Detail) error {
	return nil
}

// EventBridgeClient is the interface for Amazon EventBridge operations.
// This is satisfied by *eventbridge.Client.
type EventBridgeClient interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeNotifier implements Notifier using Amazon EventBridge.
//
// Each write is sent as one event with source "oss.bucketnotify/<bucket>" and
// a detail-type of "Bucket Notification Bound" or "Bucket Notification Cleared".
type EventBridgeNotifier struct {
	client   EventBridgeClient
	eventBus string
}

func NewEventBridgeNotifier(client EventBridgeClient, eventBus string) *EventBridgeNotifier {
	return &EventBridgeNotifier{
		client:   client,
		eventBus: eventBus,
	}
}

func (n *EventBridgeNotifier) SendDetail(ctx context.Context, d *bucketnotifyevent.Detail) error {
	bs, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	source := eventSource("oss.bucketnotify", d)
	detailType := DetailType(d)
	slog.DebugContext(ctx, "event", "source", source, "detail-type", detailType, "detail", string(bs))
	entries := []types.PutEventsRequestEntry{
		{
			EventBusName: aws.String(n.eventBus),
			Resources:    []string{d.BucketARN()},
			Source:       aws.String(source),
			DetailType:   aws.String(detailType),
			Time:         aws.Time(d.Time),
			Detail:       aws.String(string(bs)),
		},
	}
	output, err := n.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: entries,
	})
	if err != nil {
		return err
	}
	for _, entry := range output.Entries {
		if entry.ErrorCode != nil {
			return fmt.Errorf("put events failed error_code=%s, error_message=%s", *entry.ErrorCode, aws.ToString(entry.ErrorMessage))
		}
		if entry.EventId != nil {
			slog.InfoContext(ctx, "put event", "event_bus", n.eventBus, "event_id", *entry.EventId)
		}
	}
	return nil
}

// FileNotifier implements Notifier by appending events to a local file as
// newline-delimited JSON. Concurrent writers are serialised by a lock file.
type FileNotifier struct {
	eventFile string
	fileLock  *flock.Flock
}

func NewFileNotifier(eventFile, lockFile string) *FileNotifier {
	return &FileNotifier{
		eventFile: eventFile,
		fileLock:  flock.New(lockFile),
	}
}

func (n *FileNotifier) SendDetail(ctx context.Context, d *bucketnotifyevent.Detail) error {
	if err := n.lock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := n.fileLock.Unlock(); err != nil {
			slog.DebugContext(ctx, "event file unlock failed", "lock_file", n.fileLock.Path(), "error", err)
		}
	}()
	fp, err := os.OpenFile(n.eventFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		slog.DebugContext(ctx, "can not open event file", "event_file", n.eventFile, "error", err)
		return err
	}
	defer fp.Close()
	slog.DebugContext(ctx, "output audit event", "event_file", n.eventFile, "bucket", d.Bucket, "action", d.Action)
	return json.NewEncoder(fp).Encode(d)
}

func (n *FileNotifier) lock(ctx context.Context) error {
	policy := retry.Policy{
		MinDelay: 100 * time.Millisecond,
		MaxDelay: 1 * time.Second,
		MaxCount: 10,
		Jitter:   35 * time.Millisecond,
	}
	retrier := policy.Start(ctx)
	var err error
	var locked bool
	for retrier.Continue() {
		locked, err = n.fileLock.TryLock()
		if err != nil {
			slog.DebugContext(ctx, "get event file lock failed", "lock_file", n.fileLock.Path(), "error", err)
			continue
		}
		if locked {
			return nil
		}
	}
	if err == nil {
		err = errors.New("lock is held by another process")
	}
	return fmt.Errorf("cannot get lock: %w", err)
}

func (n *FileNotifier) Close() error {
	return n.fileLock.Close()
}

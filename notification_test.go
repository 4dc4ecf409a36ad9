package bucketnotify_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Songmu/flextime"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/mashiike/bucketnotify"
	"github.com/mashiike/bucketnotify/pkg/bucketnotifyevent"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFileNotifier(t *testing.T) {
	restore := flextime.Fix(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	defer restore()
	tmpDir := t.TempDir()
	eventFilePath := filepath.Join(tmpDir, "bucketnotify.json")
	ctx := context.Background()
	notifier, err := bucketnotify.NewNotifier(ctx, bucketnotify.NotifierOption{
		Type:      "file",
		EventFile: eventFilePath,
		LockFile:  filepath.Join(tmpDir, "bucketnotify.lock"),
	}, aws.Config{})
	require.NoError(t, err)
	app, err := bucketnotify.New(newMemoryS3(), nil, notifier)
	require.NoError(t, err)

	require.NoError(t, app.Put(ctx, bucketnotify.PutOption{
		Bucket:      "b1",
		FunctionArn: "arn:aws:lambda:us-east-1:123456789012:function:consumer",
		Events:      "s3:ObjectCreated:*,s3:ObjectRemoved:*",
	}))
	require.NoError(t, app.Delete(ctx, bucketnotify.DeleteOption{Bucket: "b1"}))
	require.NoError(t, app.Close())

	fp, err := os.Open(eventFilePath)
	require.NoError(t, err)
	defer fp.Close()
	var events []map[string]interface{}
	scanner := bufio.NewScanner(fp)
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		events = append(events, m)
	}
	require.NoError(t, scanner.Err())

	g := goldie.New(
		t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden.json"),
	)
	g.AssertJson(t, "file_notifier_events", events)
}

func TestNewNotifierUnknownType(t *testing.T) {
	_, err := bucketnotify.NewNotifier(context.Background(), bucketnotify.NotifierOption{Type: "sns"}, aws.Config{})
	require.EqualError(t, err, "unknown notifier type: sns")

	n, err := bucketnotify.NewNotifier(context.Background(), bucketnotify.NotifierOption{Type: "none"}, aws.Config{})
	require.NoError(t, err)
	assert.IsType(t, bucketnotify.NopNotifier{}, n)
}

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func TestEventBridgeNotifier(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	client := new(mockEventBridge)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(input *eventbridge.PutEventsInput) bool {
		if len(input.Entries) != 1 {
			return false
		}
		entry := input.Entries[0]
		return aws.ToString(entry.EventBusName) == "audit" &&
			aws.ToString(entry.Source) == "oss.bucketnotify/b1" &&
			aws.ToString(entry.DetailType) == "Bucket Notification Cleared" &&
			assert.ObjectsAreEqual([]string{"arn:aws:s3:::b1"}, entry.Resources) &&
			aws.ToTime(entry.Time).Equal(at) &&
			aws.ToString(entry.Detail) == `{"subject":"bucket b1 notification cleared","action":"clear","bucket":"b1","time":"2024-05-01T09:30:00Z"}`
	})).Return(&eventbridge.PutEventsOutput{
		Entries: []types.PutEventsResultEntry{{EventId: aws.String("event-1")}},
	}, nil).Once()

	notifier := bucketnotify.NewEventBridgeNotifier(client, "audit")
	err := notifier.SendDetail(context.Background(), &bucketnotifyevent.Detail{
		Subject: "bucket b1 notification cleared",
		Action:  bucketnotifyevent.ActionClear,
		Bucket:  "b1",
		Time:    at,
	})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestEventBridgeNotifierEntryError(t *testing.T) {
	client := new(mockEventBridge)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{{
			ErrorCode:    aws.String("InternalFailure"),
			ErrorMessage: aws.String("try again"),
		}},
	}, nil).Once()

	notifier := bucketnotify.NewEventBridgeNotifier(client, "default")
	err := notifier.SendDetail(context.Background(), &bucketnotifyevent.Detail{
		Action: bucketnotifyevent.ActionBind,
		Bucket: "b1",
	})
	require.EqualError(t, err, "put events failed error_code=InternalFailure, error_message=try again")
}

func TestDetailType(t *testing.T) {
	assert.Equal(t, "Bucket Notification Bound", bucketnotify.DetailType(&bucketnotifyevent.Detail{Action: bucketnotifyevent.ActionBind}))
	assert.Equal(t, "Bucket Notification Cleared", bucketnotify.DetailType(&bucketnotifyevent.Detail{Action: bucketnotifyevent.ActionClear}))
}

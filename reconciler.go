package bucketnotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Songmu/flextime"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/mashiike/bucketnotify/pkg/bucketnotifyevent"
)

// S3Client is the interface for the Amazon S3 bucket notification operations.
// This is satisfied by *s3.Client.
type S3Client interface {
	PutBucketNotificationConfiguration(ctx context.Context, params *s3.PutBucketNotificationConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketNotificationConfigurationOutput, error)
	GetBucketNotificationConfiguration(ctx context.Context, params *s3.GetBucketNotificationConfigurationInput, optFns ...func(*s3.Options)) (*s3.GetBucketNotificationConfigurationOutput, error)
}

// Reconciler writes a bucket's whole notification configuration.
//
// S3 only offers a full-replace write, so every call overwrites whatever was
// configured before, including targets this package did not create. Both
// Install and Remove are idempotent.
type Reconciler struct {
	client   S3Client
	notifier Notifier
}

// NewReconciler creates a Reconciler. A nil notifier disables audit events.
func NewReconciler(client S3Client, notifier Notifier) *Reconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Reconciler{
		client:   client,
		notifier: notifier,
	}
}

// Install makes b the only notification target of b.Bucket and returns the
// bucket name, used as the physical resource id.
func (r *Reconciler) Install(ctx context.Context, b *NotificationBinding) (string, error) {
	if err := r.put(ctx, b.Bucket, NewNotificationConfiguration(b)); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "added bucket notification", "bucket", b.Bucket, "function_arn", b.FunctionARN, "events", b.Events)
	r.notify(ctx, &bucketnotifyevent.Detail{
		Subject: fmt.Sprintf("bucket %s now notifies %s", b.Bucket, b.FunctionARN),
		Action:  bucketnotifyevent.ActionBind,
		Bucket:  b.Bucket,
		Target: &bucketnotifyevent.Target{
			FunctionARN: b.FunctionARN,
			Events:      b.Events,
		},
		Time: flextime.Now(),
	})
	return b.Bucket, nil
}

// Remove clears every notification target of bucket.
func (r *Reconciler) Remove(ctx context.Context, bucket string) error {
	if err := r.put(ctx, bucket, &types.NotificationConfiguration{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "removed bucket notification", "bucket", bucket)
	r.notify(ctx, &bucketnotifyevent.Detail{
		Subject: fmt.Sprintf("bucket %s notification cleared", bucket),
		Action:  bucketnotifyevent.ActionClear,
		Bucket:  bucket,
		Time:    flextime.Now(),
	})
	return nil
}

// NewNotificationConfiguration builds the configuration holding exactly one
// Lambda function target.
func NewNotificationConfiguration(b *NotificationBinding) *types.NotificationConfiguration {
	return &types.NotificationConfiguration{
		LambdaFunctionConfigurations: []types.LambdaFunctionConfiguration{
			{
				LambdaFunctionArn: aws.String(b.FunctionARN),
				Events: Map(b.Events, func(e string) types.Event {
					return types.Event(e)
				}),
			},
		},
	}
}

func (r *Reconciler) put(ctx context.Context, bucket string, cfg *types.NotificationConfiguration) error {
	slog.DebugContext(ctx, "put bucket notification configuration", "bucket", bucket, "lambda_targets", len(cfg.LambdaFunctionConfigurations))
	_, err := r.client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket:                    aws.String(bucket),
		NotificationConfiguration: cfg,
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			slog.ErrorContext(ctx, "PutBucketNotificationConfiguration failed", "bucket", bucket, "error_code", ae.ErrorCode(), "error", err)
		} else {
			slog.ErrorContext(ctx, "PutBucketNotificationConfiguration failed", "bucket", bucket, "error", err)
		}
		return err
	}
	return nil
}

func (r *Reconciler) notify(ctx context.Context, d *bucketnotifyevent.Detail) {
	if err := r.notifier.SendDetail(ctx, d); err != nil {
		slog.WarnContext(ctx, "audit notification failed", "bucket", d.Bucket, "action", d.Action, "error", err)
	}
}

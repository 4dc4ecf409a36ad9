// Package bucketnotify provides a CloudFormation custom resource that binds
// an Amazon S3 bucket's event notifications to an AWS Lambda function.
//
// CloudFormation cannot declare a notification on a bucket owned by another
// stack. bucketnotify fills that gap: a custom resource declares the bucket,
// the function ARN and the event types, and the handler writes the bucket's
// notification configuration when the resource is created, updated or deleted.
//
// # Architecture
//
//   - [Router]: dispatches lifecycle events by request type
//   - [ParseBinding]: extracts a [NotificationBinding] from resource properties
//   - [Reconciler]: writes the bucket's whole notification configuration
//   - [Notifier]: optional audit events (EventBridge or file-based)
//
// Writes are a full replace. Create and Update install exactly one Lambda
// target, dropping anything configured before. Delete clears every target.
//
// # Usage
//
// For CLI usage, create a [CLI] instance and call Run:
//
//	var cli bucketnotify.CLI
//	ctx := context.Background()
//	exitCode := cli.Run(ctx)
//
// For programmatic usage, create an [App] instance:
//
//	app, _ := bucketnotify.New(s3Client, lambdaClient, bucketnotify.NopNotifier{})
//	defer app.Close()
//	lambda.Start(app.LambdaHandler())
//
// # Resource properties
//
//   - NotificationBucket: bucket name (required)
//   - LambdaFunctionArn: function to invoke (required for Create and Update)
//   - LambdaNotificationEvents: comma delimited S3 event types (optional)
package bucketnotify

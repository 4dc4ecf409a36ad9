package bucketnotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/sync/errgroup"
)

// App wires the router, the reconciler and the AWS clients together.
// It holds no per-event state and is safe for concurrent invocations.
type App struct {
	router       *Router
	reconciler   *Reconciler
	s3Client     S3Client
	lambdaClient LambdaClient
	cleanupFns   []func() error
}

// ServeOption contains options for the serve command.
type ServeOption struct {
}

// PutOption contains options for the put command.
type PutOption struct {
	Bucket      string `help:"notification bucket name" required:"" env:"BUCKETNOTIFY_BUCKET"`
	FunctionArn string `name:"function-arn" help:"lambda function arn to notify" required:""`
	Events      string `help:"comma delimited S3 event types (e.g. s3:ObjectCreated:*,s3:ObjectRemoved:*)" default:""`
}

// DeleteOption contains options for the delete command.
type DeleteOption struct {
	Bucket string `help:"notification bucket name" required:"" env:"BUCKETNOTIFY_BUCKET"`
}

// New creates an App from explicitly constructed clients.
// lambdaClient is only needed by Describe and may be nil otherwise.
func New(s3Client S3Client, lambdaClient LambdaClient, notifier Notifier) (*App, error) {
	if s3Client == nil {
		return nil, errors.New("s3 client is required")
	}
	reconciler := NewReconciler(s3Client, notifier)
	app := &App{
		router:       NewRouter(reconciler),
		reconciler:   reconciler,
		s3Client:     s3Client,
		lambdaClient: lambdaClient,
	}
	if c, ok := notifier.(io.Closer); ok {
		app.cleanupFns = append(app.cleanupFns, c.Close)
	}
	return app, nil
}

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	awsOpts := make([]func(*config.LoadOptions) error, 0)
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		awsOpts = append(awsOpts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return *aws.NewConfig(), err
	}
	return awsCfg, nil
}

func (app *App) Close() error {
	eg, ctx := errgroup.WithContext(context.Background())
	for i, cleanup := range app.cleanupFns {
		i, cleanup := i, cleanup
		eg.Go(func() error {
			slog.DebugContext(ctx, "start cleanup", "index", i)
			if err := cleanup(); err != nil {
				slog.DebugContext(ctx, "error cleanup", "index", i, "error", err)
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// Serve starts the Lambda runtime loop. It blocks until the runtime stops.
func (app *App) Serve(ctx context.Context, _ ServeOption) error {
	if !isLambda() {
		return errors.New("serve must run on AWS Lambda; use invoke to process an event locally")
	}
	slog.InfoContext(ctx, "run on lambda")
	startLambda(ctx, app.LambdaHandler())
	return nil
}

// Put installs the binding directly, the same way a Create event would.
func (app *App) Put(ctx context.Context, opt PutOption) error {
	b := &NotificationBinding{
		Bucket:      opt.Bucket,
		FunctionARN: opt.FunctionArn,
		Events:      SplitCommaDelimited(opt.Events),
	}
	if b.Bucket == "" {
		return &MissingParameterError{Name: PropertyNotificationBucket}
	}
	if b.FunctionARN == "" {
		return &MissingParameterError{Name: PropertyLambdaFunctionArn}
	}
	if _, err := app.reconciler.Install(ctx, b); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	return nil
}

// Delete clears the bucket's notification configuration, the same way a
// Delete event would.
func (app *App) Delete(ctx context.Context, opt DeleteOption) error {
	if opt.Bucket == "" {
		return &MissingParameterError{Name: PropertyNotificationBucket}
	}
	if err := app.reconciler.Remove(ctx, opt.Bucket); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

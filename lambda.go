package bucketnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
)

func isLambda() bool {
	if strings.HasPrefix(os.Getenv("AWS_EXECUTION_ENV"), "AWS_Lambda") || os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return true
	}
	return false
}

// Handle processes one custom resource event and satisfies cfn.CustomResourceFunction.
func (app *App) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	attrs := []any{
		"request_type", event.RequestType,
		"request_id", event.RequestID,
		"logical_resource_id", event.LogicalResourceID,
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		attrs = append(attrs, "aws_request_id", lc.AwsRequestID)
	}
	slog.InfoContext(ctx, "received custom resource event", attrs...)
	if bs, err := json.Marshal(redactEvent(event)); err == nil {
		slog.DebugContext(ctx, "received event dump", "event", string(bs))
	}
	physicalResourceID, data, err := app.router.Handle(ctx, event)
	if err != nil {
		slog.ErrorContext(ctx, "custom resource event failed", append(attrs, "error", err)...)
		return physicalResourceID, data, err
	}
	slog.InfoContext(ctx, "custom resource event succeeded", append(attrs, "physical_resource_id", physicalResourceID)...)
	return physicalResourceID, data, nil
}

// LambdaHandler wraps Handle so that exactly one SUCCESS or FAILED response
// is sent to the event's ResponseURL, even when the handler panics.
func (app *App) LambdaHandler() cfn.CustomResourceLambdaFunction {
	return cfn.LambdaWrap(app.Handle)
}

// InitFailureHandler answers every event with FAILED, using initErr as reason.
// It is started instead of the regular handler when the App could not be built.
func InitFailureHandler(initErr error) cfn.CustomResourceLambdaFunction {
	return cfn.LambdaWrap(func(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
		slog.ErrorContext(ctx, "reject event, initialization failed", "request_type", event.RequestType, "request_id", event.RequestID, "error", initErr)
		return event.PhysicalResourceID, nil, fmt.Errorf("initialization failed: %w", initErr)
	})
}

func startLambda(ctx context.Context, handler cfn.CustomResourceLambdaFunction) {
	lambda.StartWithOptions(handler, lambda.WithContext(ctx))
}

// redactEvent drops the pre-signed query of ResponseURL before logging.
func redactEvent(event cfn.Event) cfn.Event {
	if event.ResponseURL == "" {
		return event
	}
	u, err := url.Parse(event.ResponseURL)
	if err != nil {
		event.ResponseURL = "[redacted]"
		return event
	}
	if u.RawQuery != "" {
		u.RawQuery = "[redacted]"
	}
	event.ResponseURL = u.String()
	return event
}

package bucketnotify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-sdk-go-v2/aws"
	lambdaapi "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fatih/color"
	"github.com/mashiike/slogutils"
)

var Version = "current"

// CLI is the command-line interface for bucketnotify.
//
// Use the Run method to execute the CLI:
//
//	var cli bucketnotify.CLI
//	ctx := context.Background()
//	exitCode := cli.Run(ctx)
//
// Available commands:
//   - serve: Start the custom resource handler on AWS Lambda (default)
//   - invoke: Process a custom resource event file locally
//   - put: Install a bucket notification binding
//   - delete: Clear a bucket's notification configuration
//   - show: Show a bucket's Lambda notification targets
type CLI struct {
	LogLevel  string           `help:"log level" default:"info" env:"BUCKETNOTIFY_LOG_LEVEL"`
	LogFormat string           `help:"log format" default:"text" enum:"text,json" env:"BUCKETNOTIFY_LOG_FORMAT"`
	LogColor  bool             `help:"enable color output" default:"true" env:"BUCKETNOTIFY_LOG_COLOR" negatable:""`
	Version   kong.VersionFlag `help:"show version"`
	Notifier  NotifierOption   `embed:"" prefix:"notifier-"`

	Serve  ServeOption  `cmd:"" help:"start the custom resource handler on AWS Lambda" default:"1"`
	Invoke InvokeOption `cmd:"" help:"process a custom resource event file locally"`
	Put    PutOption    `cmd:"" help:"install a bucket notification binding, replacing the current configuration"`
	Delete DeleteOption `cmd:"" help:"clear the bucket notification configuration"`
	Show   ShowOption   `cmd:"" help:"show the lambda notification targets of a bucket"`
}

// Run parses command-line arguments and executes the appropriate command.
// Returns 0 on success, 1 on error.
func (c *CLI) Run(ctx context.Context) int {
	k := kong.Parse(c,
		kong.Name("bucketnotify"),
		kong.Description("bucketnotify is a CloudFormation custom resource that binds an S3 bucket's event notifications to a Lambda function."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(c.LogLevel)); err != nil {
		k.Fatalf("invalid log level: %s", c.LogLevel)
	}
	logger := newLogger(logLevel, c.LogFormat, c.LogColor)
	slog.SetDefault(logger)
	if err := c.run(ctx, k); err != nil {
		slog.Error("runtime error", "details", err)
		return 1
	}
	return 0
}

func (c *CLI) run(ctx context.Context, k *kong.Context) error {
	cmd := k.Command()
	app, err := c.newApp(ctx)
	if err != nil {
		if isServe(cmd) && isLambda() {
			slog.ErrorContext(ctx, "initialization failed, every event will be answered as FAILED", "details", err)
			startLambda(ctx, InitFailureHandler(err))
			return nil
		}
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.WarnContext(ctx, "app cleanup error", "details", err)
		}
	}()
	switch {
	case isServe(cmd):
		return app.Serve(ctx, c.Serve)
	case strings.HasPrefix(cmd, "invoke"):
		return app.Invoke(ctx, c.Invoke)
	case cmd == "put":
		return app.Put(ctx, c.Put)
	case cmd == "delete":
		return app.Delete(ctx, c.Delete)
	case strings.HasPrefix(cmd, "show"):
		return app.Show(ctx, c.Show)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func isServe(cmd string) bool {
	return cmd == "serve" || cmd == ""
}

func (c *CLI) newApp(ctx context.Context) (*App, error) {
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	notifier, err := NewNotifier(ctx, c.Notifier, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create Notifier: %w", err)
	}
	return New(NewS3Client(awsCfg), lambdaapi.NewFromConfig(awsCfg), notifier)
}

// NewS3Client creates the S3 client used by the reconciler.
func NewS3Client(awsCfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
	return s3.NewFromConfig(awsCfg, optFns...)
}

func newLogger(level slog.Level, format string, c bool) *slog.Logger {
	var f func(io.Writer, *slog.HandlerOptions) slog.Handler
	switch format {
	case "json":
		f = func(w io.Writer, ho *slog.HandlerOptions) slog.Handler {
			return slog.NewJSONHandler(w, ho)
		}
	default:
		f = func(w io.Writer, ho *slog.HandlerOptions) slog.Handler {
			return slog.NewTextHandler(w, ho)
		}
	}
	var modifierFuncs map[slog.Level]slogutils.ModifierFunc
	if c {
		modifierFuncs = map[slog.Level]slogutils.ModifierFunc{
			slog.LevelDebug: slogutils.Color(color.FgBlack),
			slog.LevelInfo:  nil,
			slog.LevelWarn:  slogutils.Color(color.FgYellow),
			slog.LevelError: slogutils.Color(color.FgRed, color.Bold),
		}
	}
	middleware := slogutils.NewMiddleware(
		f,
		slogutils.MiddlewareOptions{
			Writer:        os.Stderr,
			ModifierFuncs: modifierFuncs,
			HandlerOptions: &slog.HandlerOptions{
				Level:     level,
				AddSource: level == slog.LevelDebug,
			},
		},
	)
	return slog.New(middleware)
}

package bucketnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

// InvokeOption contains options for the invoke command.
type InvokeOption struct {
	EventFile    string    `arg:"" name:"event-file" help:"CloudFormation custom resource event (JSON or YAML); a path or a file://, http(s):// or s3:// URL"`
	SendResponse bool      `help:"PUT the response to the event's ResponseURL instead of printing it" default:"false"`
	Output       io.Writer `kong:"-"`
}

// LoadEvent reads a custom resource event in JSON or YAML from a local path
// or a file://, http(s):// or s3:// URL.
func LoadEvent(ctx context.Context, getter ObjectGetter, location string) (*cfn.Event, error) {
	bs, err := fetch(ctx, getter, location)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	switch locationExt(location) {
	case ".yaml", ".yml":
		bs, err = yaml.YAMLToJSON(bs)
		if err != nil {
			return nil, fmt.Errorf("failed to convert yaml event: %w", err)
		}
	}
	return ParseEvent(bs)
}

// ParseEvent decodes a JSON custom resource event. A missing RequestId is
// filled with a random UUID.
func ParseEvent(bs []byte) (*cfn.Event, error) {
	var event cfn.Event
	if err := json.Unmarshal(bs, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	if event.RequestType == "" {
		return nil, fmt.Errorf("RequestType is required")
	}
	if event.RequestID == "" {
		uuidObj, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("create new uuid v4: %w", err)
		}
		event.RequestID = uuidObj.String()
	}
	if event.ResourceProperties == nil {
		event.ResourceProperties = map[string]interface{}{}
	}
	return &event, nil
}

// Invoke runs one event through the handler locally.
//
// Without SendResponse the response CloudFormation would receive is printed
// instead of being sent. A failed event is also returned as an error.
func (app *App) Invoke(ctx context.Context, opt InvokeOption) error {
	getter, _ := app.s3Client.(ObjectGetter)
	event, err := LoadEvent(ctx, getter, opt.EventFile)
	if err != nil {
		return err
	}
	if opt.SendResponse {
		if event.ResponseURL == "" {
			return fmt.Errorf("event has no ResponseURL")
		}
		reason, err := app.LambdaHandler()(ctx, *event)
		if err != nil {
			return fmt.Errorf("send response: %w", err)
		}
		if reason != "" {
			slog.WarnContext(ctx, "response sent with reason", "reason", reason)
		}
		return nil
	}
	w := opt.Output
	if w == nil {
		w = os.Stdout
	}
	resp := cfn.NewResponse(event)
	physicalResourceID, data, handleErr := app.Handle(ctx, *event)
	resp.PhysicalResourceID = physicalResourceID
	resp.Data = data
	if handleErr != nil {
		resp.Status = cfn.StatusFailed
		resp.Reason = handleErr.Error()
	} else {
		resp.Status = cfn.StatusSuccess
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return handleErr
}

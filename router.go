package bucketnotify

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
)

// HandlerFunc handles one lifecycle event and returns the physical resource id.
type HandlerFunc func(ctx context.Context, event cfn.Event) (string, error)

type UnsupportedRequestTypeError struct {
	RequestType cfn.RequestType
}

func (err *UnsupportedRequestTypeError) Error() string {
	return fmt.Sprintf("unsupported request type: %q", err.RequestType)
}

// Router dispatches CloudFormation custom resource events by request type.
//
// Create and Update share one handler: installing a binding is a full replace,
// so there is nothing to distinguish a first install from a changed one.
type Router struct {
	handlers map[cfn.RequestType]HandlerFunc
}

func NewRouter(r *Reconciler) *Router {
	install := func(ctx context.Context, event cfn.Event) (string, error) {
		b, err := ParseBinding(event.ResourceProperties)
		if err != nil {
			return "", err
		}
		return r.Install(ctx, b)
	}
	remove := func(ctx context.Context, event cfn.Event) (string, error) {
		bucket, err := ParseBucket(event.ResourceProperties)
		if err != nil {
			return "", err
		}
		if err := r.Remove(ctx, bucket); err != nil {
			return "", err
		}
		return event.PhysicalResourceID, nil
	}
	return &Router{
		handlers: map[cfn.RequestType]HandlerFunc{
			cfn.RequestCreate: install,
			cfn.RequestUpdate: install,
			cfn.RequestDelete: remove,
		},
	}
}

// Handle satisfies cfn.CustomResourceFunction. Handler errors are returned
// unchanged; on error the event's own physical resource id is reported back.
func (r *Router) Handle(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
	h, ok := r.handlers[event.RequestType]
	if !ok {
		return event.PhysicalResourceID, nil, &UnsupportedRequestTypeError{RequestType: event.RequestType}
	}
	physicalResourceID, err := h(ctx, event)
	if err != nil {
		return event.PhysicalResourceID, nil, err
	}
	return physicalResourceID, nil, nil
}

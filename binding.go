package bucketnotify

import (
	"fmt"
	"strings"
)

// Resource property names declared on the custom resource.
const (
	PropertyNotificationBucket       = "NotificationBucket"
	PropertyLambdaFunctionArn        = "LambdaFunctionArn"
	PropertyLambdaNotificationEvents = "LambdaNotificationEvents"
)

// NotificationBinding is the declared pairing of a bucket, the Lambda function
// to invoke and the S3 event types that trigger it.
//
// Events may be empty. An empty list still installs the function target and
// is not the same thing as clearing the configuration.
type NotificationBinding struct {
	Bucket      string
	FunctionARN string
	Events      []string
}

type MissingParameterError struct {
	Name string
}

func (err *MissingParameterError) Error() string {
	return fmt.Sprintf("required property %s is missing", err.Name)
}

type InvalidParameterError struct {
	Name  string
	Value any
}

func (err *InvalidParameterError) Error() string {
	return fmt.Sprintf("property %s has unexpected type %T", err.Name, err.Value)
}

// ParseBinding extracts a NotificationBinding from the resource properties of
// a Create or Update event.
func ParseBinding(props map[string]any) (*NotificationBinding, error) {
	bucket, err := requiredString(props, PropertyNotificationBucket)
	if err != nil {
		return nil, err
	}
	functionARN, err := requiredString(props, PropertyLambdaFunctionArn)
	if err != nil {
		return nil, err
	}
	events, err := commaDelimitedList(props, PropertyLambdaNotificationEvents)
	if err != nil {
		return nil, err
	}
	return &NotificationBinding{
		Bucket:      bucket,
		FunctionARN: functionARN,
		Events:      events,
	}, nil
}

// ParseBucket extracts only the bucket name, which is all a Delete needs.
func ParseBucket(props map[string]any) (string, error) {
	return requiredString(props, PropertyNotificationBucket)
}

func requiredString(props map[string]any, name string) (string, error) {
	v, ok := props[name]
	if !ok || v == nil {
		return "", &MissingParameterError{Name: name}
	}
	s, ok := v.(string)
	if !ok {
		return "", &InvalidParameterError{Name: name, Value: v}
	}
	if s == "" {
		return "", &MissingParameterError{Name: name}
	}
	return s, nil
}

// commaDelimitedList accepts either "a, b" or an already split list.
// Tokens keep their order and are not de-duplicated.
func commaDelimitedList(props map[string]any, name string) ([]string, error) {
	v, ok := props[name]
	if !ok || v == nil {
		return []string{}, nil
	}
	switch value := v.(type) {
	case string:
		return SplitCommaDelimited(value), nil
	case []string:
		return Map(value, strings.TrimSpace), nil
	case []any:
		list := make([]string, 0, len(value))
		for _, elem := range value {
			s, ok := elem.(string)
			if !ok {
				return nil, &InvalidParameterError{Name: name, Value: elem}
			}
			list = append(list, strings.TrimSpace(s))
		}
		return list, nil
	default:
		return nil, &InvalidParameterError{Name: name, Value: v}
	}
}

// SplitCommaDelimited splits s on commas and trims whitespace around every
// token. An empty string yields an empty, non-nil slice.
func SplitCommaDelimited(s string) []string {
	if s == "" {
		return []string{}
	}
	return Map(strings.Split(s, ","), strings.TrimSpace)
}

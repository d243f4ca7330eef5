package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownContentID addresses failures whose request could not be read at all.
const UnknownContentID = "unknown"

// SyntaxError reports an inbound body that is not valid JSON.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid JSON in message body: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// DeserializationError reports valid JSON that does not form a request.
type DeserializationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Reason)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// DecodeRequest parses an inbound body into a ProcessRequest. Unknown fields
// are ignored; eventId, eventType and timestamp are filled in when absent.
func DecodeRequest(body []byte) (*ProcessRequest, error) {
	var req ProcessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field := typeErr.Field
			if field == "" {
				field = "(root)"
			}
			return nil, &DeserializationError{
				Field:  field,
				Reason: fmt.Sprintf("cannot use %s as %s", typeErr.Value, typeErr.Type),
				Err:    err,
			}
		}
		return nil, &SyntaxError{Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &SyntaxError{Err: err}
	}
	if err := req.validate(fields); err != nil {
		return nil, err
	}

	if req.EventID == "" {
		req.EventID = NewEventID()
	}
	if req.EventType == "" {
		req.EventType = EventProcessRequest
	}
	if req.Timestamp == "" {
		req.Timestamp = Now()
	}
	return &req, nil
}

// validate checks required fields. fields holds the raw object so numeric
// fields whose zero value is legal can still be told apart from absent ones.
func (r *ProcessRequest) validate(fields map[string]json.RawMessage) error {
	missing := func(field string) error {
		return &DeserializationError{Field: field, Reason: "field required"}
	}

	if r.ContentID == "" {
		return missing("contentId")
	}
	if r.ContentType == "" {
		return missing("contentType")
	}

	switch r.ContentType {
	case ContentDocument:
		if r.S3Bucket == "" {
			return missing("s3Bucket")
		}
		if r.S3Key == "" {
			return missing("s3Key")
		}
		if r.FileName == "" {
			return missing("fileName")
		}
		if r.MimeType == "" {
			return missing("mimeType")
		}
		if raw, ok := fields["fileSize"]; !ok || string(raw) == "null" {
			return missing("fileSize")
		}
		if r.ProjectID == "" {
			return missing("projectId")
		}
		if r.UserID == "" {
			return missing("userId")
		}
	case ContentWeb:
		if r.WebURL == "" {
			return missing("webUrl")
		}
	}
	return nil
}

// PeekIdentity recovers whatever identity a body carries without validating
// it. Unreadable bodies yield "unknown" and the document content type.
func PeekIdentity(body []byte) Identity {
	id := Identity{ContentID: UnknownContentID, ContentType: ContentDocument}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return id
	}
	if v, ok := raw["contentId"].(string); ok && v != "" {
		id.ContentID = v
	}
	if v, ok := raw["contentType"].(string); ok && v != "" {
		id.ContentType = ContentType(v)
	}
	if v, ok := raw["retryCount"].(float64); ok {
		id.RetryCount = int(v)
	}
	return id
}

package pipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Code is the wire value reported as errorCode on a failure message.
type Code string

const (
	CodeDocumentProcessing     Code = "DOCUMENT_PROCESSING_ERROR"
	CodeS3Upload               Code = "S3_UPLOAD_ERROR"
	CodeS3Download             Code = "S3_DOWNLOAD_ERROR"
	CodeSQSMessage             Code = "SQS_MESSAGE_ERROR"
	CodeNotImplemented         Code = "NOT_IMPLEMENTED"
	CodeUnsupportedContentType Code = "UNSUPPORTED_CONTENT_TYPE"
	CodeHandler                Code = "HANDLER_ERROR"
	CodeUnexpected             Code = "UNEXPECTED_ERROR"
	CodeJSONDecode             Code = "JSON_DECODE_ERROR"
	CodeDeserialization        Code = "DESERIALIZATION_ERROR"
)

// Permanent reports whether redelivering the same request can only fail the
// same way.
func (c Code) Permanent() bool {
	switch c {
	case CodeJSONDecode, CodeDeserialization, CodeNotImplemented, CodeUnsupportedContentType:
		return true
	}
	return false
}

// Step is the wire value reported as failedStep on a failure message.
type Step string

const (
	StepDocumentProcessing Step = "document_processing"
	StepS3Upload           Step = "s3_upload"
	StepS3Download         Step = "s3_download"
	StepSQSMessage         Step = "sqs_message"
	StepParserSelection    Step = "parser_selection"
	StepRequestProcessing  Step = "request_processing"
	StepMessageProcessing  Step = "message_processing"
	StepMessageParsing     Step = "message_parsing"
)

// Error is a classified processing failure. The stack is captured when the
// error is classified, not when it is reported.
type Error struct {
	Code    Code
	Step    Step
	Message string
	Err     error

	trace string
}

func New(code Code, step Step, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Step:    step,
		Message: message,
		Err:     cause,
		trace:   captureStack(message),
	}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the formatted stack recorded at classification time.
func (e *Error) StackTrace() string {
	return e.trace
}

func captureStack(message string) string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	st, ok := pkgerrors.New(message).(stackTracer)
	if !ok {
		return ""
	}
	frames := st.StackTrace()
	// drop captureStack and New
	if len(frames) > 2 {
		frames = frames[2:]
	}
	return strings.TrimPrefix(fmt.Sprintf("%+v", frames), "\n")
}

// As reports whether err already carries a classification.
func As(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

// Classify keeps an existing classification, otherwise wraps err under the
// given code and step with "prefix: err" as its message.
func Classify(err error, code Code, step Step, prefix string) *Error {
	if err == nil {
		return nil
	}
	if perr, ok := As(err); ok {
		return perr
	}
	return New(code, step, fmt.Sprintf("%s: %v", prefix, err), err)
}

// Recovered converts a recovered panic value into a classified error whose
// stack is the panicking goroutine's.
func Recovered(v any, code Code, step Step, prefix string) *Error {
	var cause error
	switch x := v.(type) {
	case error:
		cause = x
	default:
		cause = fmt.Errorf("%v", x)
	}
	return &Error{
		Code:    code,
		Step:    step,
		Message: fmt.Sprintf("%s: %v", prefix, cause),
		Err:     cause,
		trace:   string(debug.Stack()),
	}
}

func DocumentProcessing(message string, cause error) *Error {
	return New(CodeDocumentProcessing, StepDocumentProcessing, message, cause)
}

func Download(message string, cause error) *Error {
	return New(CodeS3Download, StepS3Download, message, cause)
}

func Upload(message string, cause error) *Error {
	return New(CodeS3Upload, StepS3Upload, message, cause)
}

func QueueMessage(message string, cause error) *Error {
	return New(CodeSQSMessage, StepSQSMessage, message, cause)
}

func NotImplemented(message string) *Error {
	return New(CodeNotImplemented, StepParserSelection, message, nil)
}

func UnsupportedContentType(message string) *Error {
	return New(CodeUnsupportedContentType, StepParserSelection, message, nil)
}

func Handler(message string, cause error) *Error {
	return New(CodeHandler, StepRequestProcessing, message, cause)
}

func Unexpected(message string, cause error) *Error {
	return New(CodeUnexpected, StepMessageProcessing, message, cause)
}

func JSONDecode(message string, cause error) *Error {
	return New(CodeJSONDecode, StepMessageParsing, message, cause)
}

func Deserialization(message string, cause error) *Error {
	return New(CodeDeserialization, StepMessageParsing, message, cause)
}

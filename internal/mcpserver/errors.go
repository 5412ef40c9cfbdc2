package mcpserver

import (
	"context"
	"errors"
	"fmt"

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// Standard JSON-RPC error codes, plus domain-specific codes in the
// -32000..-32099 "server error" range reserved for implementations.
const (
	ErrCodeNotFound      = -32001
	ErrCodeTimeout       = -32003
	ErrCodeTooLarge      = -32005
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// ToolError is an MCP-shaped error with a numeric code and message.
type ToolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds a ToolError for a bad tool argument.
func NewInvalidParamsError(msg string) *ToolError {
	return &ToolError{Code: ErrCodeInvalidParams, Message: msg}
}

// mapError converts an error returned by internal/ingestor.Service into a
// ToolError, unwrapping an *IngestError for category-appropriate codes.
func mapError(err error) *ToolError {
	if err == nil {
		return nil
	}

	var ie *ingesterrors.IngestError
	if errors.As(err, &ie) {
		return mapIngestError(ie)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &ToolError{Code: ErrCodeTimeout, Message: "request timed out or was canceled"}
	default:
		return &ToolError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapIngestError(ie *ingesterrors.IngestError) *ToolError {
	switch ie.Category {
	case ingesterrors.CategoryValidation:
		return &ToolError{Code: ErrCodeInvalidParams, Message: ie.Message}
	case ingesterrors.CategoryIO:
		code := ErrCodeInternalError
		switch ie.Code {
		case ingesterrors.ErrCodeFileNotFound:
			code = ErrCodeNotFound
		case ingesterrors.ErrCodeFileTooLarge:
			code = ErrCodeTooLarge
		}
		return &ToolError{Code: code, Message: ie.Message}
	case ingesterrors.CategoryNetwork:
		return &ToolError{Code: ErrCodeTimeout, Message: ie.Message}
	default:
		return &ToolError{Code: ErrCodeInternalError, Message: ie.Message}
	}
}

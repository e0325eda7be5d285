package multipost

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnimplemented is returned by adapters whose service API is not supported yet.
var ErrUnimplemented = errors.New("unimplemented")

// MissingCredentialError is returned when a service preference lacks required credentials.
type MissingCredentialError struct {
	Service ServiceName
	Keys    []string
}

func (e MissingCredentialError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Service)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Service, strings.Join(e.Keys, ", "))
}

// ValidationError captures service-specific validation issues.
type ValidationError struct {
	Service ServiceName
	Reason  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Service, e.Reason)
}

// AuthenticationError is returned when a service refuses the stored credentials.
type AuthenticationError struct {
	Service ServiceName
	Err     error
}

func (e AuthenticationError) Error() string {
	return fmt.Sprintf("%s login failed: %v", e.Service, e.Err)
}

func (e AuthenticationError) Unwrap() error { return e.Err }

// UploadError is returned when an attachment could not be uploaded.
type UploadError struct {
	Service ServiceName
	Err     error
}

func (e UploadError) Error() string {
	return fmt.Sprintf("%s upload failed: %v", e.Service, e.Err)
}

func (e UploadError) Unwrap() error { return e.Err }

// SubmissionError is returned when a service rejects the post payload.
type SubmissionError struct {
	Service ServiceName
	Err     error
}

func (e SubmissionError) Error() string {
	return fmt.Sprintf("%s rejected post: %v", e.Service, e.Err)
}

func (e SubmissionError) Unwrap() error { return e.Err }

// ScrapeElementMissingError reports an optional composer element that could not be found.
// It is logged and never aborts a scan.
type ScrapeElementMissingError struct {
	Element string
}

func (e ScrapeElementMissingError) Error() string {
	return fmt.Sprintf("not found %s", e.Element)
}

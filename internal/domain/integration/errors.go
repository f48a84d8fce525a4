package integration

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a document payload that could not be decoded
	ErrDecode = errors.New("integration: document payload unreadable")

	// ErrFieldConversion marks a single field value that could not be converted
	ErrFieldConversion = errors.New("integration: field conversion failed")

	// ErrDelivery marks a batch rejected by the label platform
	ErrDelivery = errors.New("integration: batch delivery rejected")

	// ErrTransport marks a network or upstream failure after retries
	ErrTransport = errors.New("integration: transport failure")

	// ErrUnsupportedDocument is returned for document kinds outside the closed set
	ErrUnsupportedDocument = errors.New("integration: unsupported document type")

	// ErrInvalidStore is returned when a store reference is incomplete
	ErrInvalidStore = errors.New("integration: invalid store")
)

// DecodeError reports why a document payload could not be turned into records.
type DecodeError struct {
	Document string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Document, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// FieldConversionError reports a dropped field and the value that failed.
type FieldConversionError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldConversionError) Error() string {
	return fmt.Sprintf("convert field %s (%v): %v", e.Field, e.Value, e.Err)
}

func (e *FieldConversionError) Unwrap() []error { return []error{ErrFieldConversion, e.Err} }

// DeliveryError reports a chunk the platform did not accept.
type DeliveryError struct {
	Store   string
	Chunk   int
	Code    string
	Message string
}

func (e *DeliveryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("deliver store %s chunk %d: error code %s: %s", e.Store, e.Chunk, e.Code, e.Message)
	}
	return fmt.Sprintf("deliver store %s chunk %d: %s", e.Store, e.Chunk, e.Message)
}

func (e *DeliveryError) Unwrap() error { return ErrDelivery }

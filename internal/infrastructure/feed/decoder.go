package feed

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erp/labelsync/internal/domain/integration"
)

// GzipJSONDecoder decodes base64 text of a gzip stream of JSON
type GzipJSONDecoder struct{}

// Ensure GzipJSONDecoder implements Decoder
var _ integration.Decoder = GzipJSONDecoder{}

// Decode returns the document object or a *integration.DecodeError
func (GzipJSONDecoder) Decode(doc integration.DocumentRef, data string) (integration.Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, &integration.DecodeError{Document: doc.Name, Err: fmt.Errorf("base64: %w", err)}
	}

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &integration.DecodeError{Document: doc.Name, Err: fmt.Errorf("gzip: %w", err)}
	}
	defer gz.Close()

	var payload integration.Payload
	if err := json.NewDecoder(gz).Decode(&payload); err != nil {
		return nil, &integration.DecodeError{Document: doc.Name, Err: fmt.Errorf("json: %w", err)}
	}
	if payload == nil {
		payload = integration.Payload{}
	}
	return payload, nil
}

// Encode is the inverse of Decode. The dump tool and tests use it to build fixtures.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

package bus

import (
	"encoding/json"
	"os"
	"time"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

// Payload is the bus message carried per file. The file name is the only
// required field; consumers stay idempotent on it.
type Payload struct {
	FileName   string `json:"file_name"`
	SourceNode string `json:"source_node,omitempty"`
	RetryCount int    `json:"retry_count"`
	IngestedAt string `json:"ingested_at,omitempty"`
}

// NewPayload builds a payload for a freshly enumerated file, stamping the
// producing host and the current UTC time.
func NewPayload(fileName string) Payload {
	hostname, _ := os.Hostname()
	return Payload{
		FileName:   fileName,
		SourceNode: hostname,
		IngestedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Marshal serializes the payload for the wire.
func (p Payload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload parses a bus message. Undecodable bytes or a missing file
// name are malformed: the caller acknowledges and drops the message.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, apperrors.WrapError(apperrors.ErrMalformedPayload, err.Error())
	}
	if p.FileName == "" {
		return Payload{}, apperrors.WrapError(apperrors.ErrMalformedPayload, "missing file_name")
	}
	if p.RetryCount < 0 {
		return Payload{}, apperrors.WrapError(apperrors.ErrMalformedPayload, "negative retry_count")
	}
	return p, nil
}

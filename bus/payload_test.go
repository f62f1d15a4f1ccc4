package bus

import (
	"testing"

	apperrors "github.com/molly-mint-choco/email-dedup/errors"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Payload
		wantErr bool
	}{
		{
			name:  "full_payload",
			input: `{"file_name":"a.txt","source_node":"host-1","retry_count":2,"ingested_at":"2024-01-02T03:04:05Z"}`,
			want: Payload{
				FileName:   "a.txt",
				SourceNode: "host-1",
				RetryCount: 2,
				IngestedAt: "2024-01-02T03:04:05Z",
			},
		},
		{
			name:  "minimal_payload_defaults",
			input: `{"file_name":"a.txt"}`,
			want:  Payload{FileName: "a.txt"},
		},
		{
			name:    "missing_file_name",
			input:   `{"source_node":"host-1"}`,
			wantErr: true,
		},
		{
			name:    "negative_retry_count",
			input:   `{"file_name":"a.txt","retry_count":-1}`,
			wantErr: true,
		},
		{
			name:    "not_json",
			input:   `file_name=a.txt`,
			wantErr: true,
		},
		{
			name:    "empty_input",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload([]byte(tt.input))
			if tt.wantErr {
				if !apperrors.IsMalformedPayload(err) {
					t.Fatalf("DecodePayload() error = %v, want malformed payload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodePayload() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	payload := NewPayload("a.txt")
	if payload.FileName != "a.txt" {
		t.Errorf("FileName = %q, want %q", payload.FileName, "a.txt")
	}
	if payload.IngestedAt == "" {
		t.Error("IngestedAt not stamped")
	}

	data, err := payload.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	decoded, err := DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload() error: %v", err)
	}
	if decoded != payload {
		t.Errorf("round trip changed payload: %+v != %+v", decoded, payload)
	}
}

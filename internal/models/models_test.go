package models

import (
	"errors"
	"strings"
	"testing"
)

func TestInboundMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     InboundMessage
		wantErr error
	}{
		{
			name: "valid message",
			msg:  InboundMessage{ContactPhone: "628123456789", Body: "halo"},
		},
		{
			name: "empty body is legal",
			msg:  InboundMessage{ContactPhone: "628123456789"},
		},
		{
			name:    "missing contact phone",
			msg:     InboundMessage{Body: "halo"},
			wantErr: ErrEmptyContactPhone,
		},
		{
			name:    "body too long",
			msg:     InboundMessage{ContactPhone: "628123456789", Body: strings.Repeat("a", MaxMessageBodyLength+1)},
			wantErr: ErrMessageBodyTooLong,
		},
		{
			name: "body at the cap is accepted",
			msg:  InboundMessage{ContactPhone: "628123456789", Body: strings.Repeat("a", MaxMessageBodyLength)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInboundMessageNormalizedType(t *testing.T) {
	msg := InboundMessage{ContactPhone: "628123456789"}
	if got := msg.NormalizedType(); got != MessageTypeText {
		t.Errorf("NormalizedType() with no tag = %q, want text", got)
	}
	msg.Type = MessageTypeImage
	if got := msg.NormalizedType(); got != MessageTypeImage {
		t.Errorf("NormalizedType() = %q, want image", got)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if resp := Success("payload"); resp.Status != string(APIStatusOK) || resp.Result != "payload" {
		t.Errorf("Success() = %+v", resp)
	}
	if resp := SuccessWithMessage("done", nil); resp.Status != string(APIStatusOK) || resp.Message != "done" {
		t.Errorf("SuccessWithMessage() = %+v", resp)
	}
	if resp := Error("boom"); resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("Error() = %+v", resp)
	}
	if resp := Recorded(); resp.Status != string(APIStatusRecorded) {
		t.Errorf("Recorded() = %+v", resp)
	}
}

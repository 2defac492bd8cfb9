// Package models defines the core data structures for the Sarah lead-qualification engine.
//
// It includes the conversation state shared across modules, inbound message events,
// delivery receipts, and API response types.
package models

import (
	"errors"
	"time"
)

// MessageType tags the kind of inbound WhatsApp message.
type MessageType string

const (
	// MessageTypeText is a plain text message.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image message.
	MessageTypeImage MessageType = "image"
	// MessageTypeAudio is a voice note or audio message.
	MessageTypeAudio MessageType = "audio"
	// MessageTypeDocument is a document attachment.
	MessageTypeDocument MessageType = "document"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum accepted inbound message body length
	MaxMessageBodyLength = 4096
	// MinPhoneDigits defines the minimum number of digits for a contact phone
	MinPhoneDigits = 6
)

// Error variables for better error handling and testability
var (
	ErrEmptyContactPhone        = errors.New("contact phone cannot be empty")
	ErrMessageBodyTooLong       = errors.New("message body exceeds maximum length")
	ErrInvalidFunnelState       = errors.New("invalid funnel state")
	ErrInvalidLeadTemperature   = errors.New("invalid lead temperature")
	ErrInvalidLanguage          = errors.New("invalid language")
	ErrLeadScoreOutOfRange      = errors.New("lead score must be within [0,100]")
	ErrNegativeMessageCount     = errors.New("message count cannot be negative")
	ErrConcurrentModification   = errors.New("conversation state was modified concurrently")
	ErrConversationStateMissing = errors.New("conversation state not found")
)

// InboundMessage represents one inbound WhatsApp message event handed to the engine.
type InboundMessage struct {
	ContactPhone string      `json:"contact_phone"`
	WorkspaceID  string      `json:"workspace_id,omitempty"`
	Body         string      `json:"body"`
	Type         MessageType `json:"type,omitempty"`
	Time         int64       `json:"time,omitempty"`
}

// Validate performs validation on an InboundMessage. Empty bodies are legal
// (they classify and extract as empty strings); an empty contact phone is not.
func (m *InboundMessage) Validate() error {
	if m.ContactPhone == "" {
		return ErrEmptyContactPhone
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrMessageBodyTooLong
	}
	return nil
}

// NormalizedType returns the message type, defaulting to text when the tag is absent.
func (m *InboundMessage) NormalizedType() MessageType {
	if m.Type == "" {
		return MessageTypeText
	}
	return m.Type
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a contact, as surfaced by a
// messaging backend before the engine has processed it.
type Response struct {
	From string      `json:"from"`
	Body string      `json:"body"`
	Type MessageType `json:"type,omitempty"`
	Time int64       `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded indicates data was successfully recorded via API.
	APIStatusRecorded APIStatus = "recorded"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Recorded creates a recorded API response.
func Recorded() APIResponse {
	return APIResponse{Status: string(APIStatusRecorded)}
}

// Timestamp returns t unchanged, substituting the current unix time when zero.
func Timestamp(t int64) int64 {
	if t == 0 {
		return time.Now().Unix()
	}
	return t
}

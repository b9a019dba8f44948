// Package genie drives the remote natural-language-to-SQL conversation
// service: it submits questions, polls the remote job until it settles and
// turns query results into token-bounded text.
package genie

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hyperjump/aibridge/internal/table"
)

// MessageStatus is the remote state of a conversation message.
type MessageStatus string

const (
	StatusSubmitted          MessageStatus = "SUBMITTED"
	StatusFetchingMetadata   MessageStatus = "FETCHING_METADATA"
	StatusFilteringContext   MessageStatus = "FILTERING_CONTEXT"
	StatusAskingAI           MessageStatus = "ASKING_AI"
	StatusPendingWarehouse   MessageStatus = "PENDING_WAREHOUSE"
	StatusExecutingQuery     MessageStatus = "EXECUTING_QUERY"
	StatusCompleted          MessageStatus = "COMPLETED"
	StatusFailed             MessageStatus = "FAILED"
	StatusCancelled          MessageStatus = "CANCELLED"
	StatusQueryResultExpired MessageStatus = "QUERY_RESULT_EXPIRED"
)

// StatementState is the remote state of a query execution.
type StatementState string

const (
	StatePending   StatementState = "PENDING"
	StateRunning   StatementState = "RUNNING"
	StateSucceeded StatementState = "SUCCEEDED"
	StateFailed    StatementState = "FAILED"
	StateCanceled  StatementState = "CANCELED"
	StateClosed    StatementState = "CLOSED"
)

// MessageRef identifies a message created by starting or continuing a conversation.
type MessageRef struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Message is the polled state of a conversation message.
type Message struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Status         MessageStatus   `json:"status"`
	Attachments    []Attachment    `json:"attachments,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
}

// Attachment carries either a generated query or free text.
type Attachment struct {
	AttachmentID string          `json:"attachment_id,omitempty"`
	Query        *QueryContent   `json:"query,omitempty"`
	Text         *TextAttachment `json:"text,omitempty"`
}

// QueryContent is the SQL generated for a question.
type QueryContent struct {
	Query       string `json:"query,omitempty"`
	Description string `json:"description,omitempty"`
}

// TextAttachment is a plain-text answer.
type TextAttachment struct {
	Content string `json:"content"`
}

// StatementResponse is the result of executing an attachment's query.
type StatementResponse struct {
	Status         StatementStatus  `json:"status"`
	Manifest       *Manifest        `json:"manifest,omitempty"`
	Result         *StatementResult `json:"result,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
}

// StatementStatus wraps the execution state.
type StatementStatus struct {
	State StatementState `json:"state"`
}

// Manifest describes the result schema.
type Manifest struct {
	Schema Schema `json:"schema"`
}

// Schema lists result columns in order.
type Schema struct {
	Columns []table.TypedColumn `json:"columns"`
}

// StatementResult holds the raw rows of a result. Cells are strings or null.
type StatementResult struct {
	DataArray [][]*string `json:"data_array"`
}

// Space is a conversation space's metadata.
type Space struct {
	SpaceID     string `json:"space_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// API is the remote capability the poller drives. Client implements it over
// HTTP; tests stub it.
type API interface {
	StartConversation(ctx context.Context, content string) (*MessageRef, error)
	CreateMessage(ctx context.Context, conversationID, content string) (*MessageRef, error)
	GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error)
	GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*StatementResponse, error)
	GetSpace(ctx context.Context) (*Space, error)
}

// Response is the uniform answer to a question. Remote failures and
// timeouts are reported in Result, never as errors.
type Response struct {
	Result         string `json:"result"`
	Query          string `json:"query"`
	Description    string `json:"description"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// errorText renders a message error payload, which may be a string or an
// object with an "error" field.
func errorText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Error != "" {
		return obj.Error
	}
	return trimmed
}

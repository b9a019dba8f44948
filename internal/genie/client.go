package genie

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hyperjump/aibridge/internal/workspace"
)

// Client implements API against the workspace REST endpoints of one space.
type Client struct {
	ws      *workspace.Client
	spaceID string
}

// NewClient returns a Client for spaceID.
func NewClient(ws *workspace.Client, spaceID string) *Client {
	return &Client{ws: ws, spaceID: spaceID}
}

type contentRequest struct {
	Content string `json:"content"`
}

func (c *Client) spacePath() string {
	return "/api/2.0/genie/spaces/" + url.PathEscape(c.spaceID)
}

func (c *Client) messagePath(conversationID, messageID string) string {
	return c.spacePath() + "/conversations/" + url.PathEscape(conversationID) +
		"/messages/" + url.PathEscape(messageID)
}

// StartConversation calls POST /start-conversation with content as the opening message.
func (c *Client) StartConversation(ctx context.Context, content string) (*MessageRef, error) {
	var ref MessageRef
	if err := c.ws.Do(ctx, http.MethodPost, c.spacePath()+"/start-conversation", contentRequest{Content: content}, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateMessage posts content as a new message on an existing conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID, content string) (*MessageRef, error) {
	var ref MessageRef
	path := c.spacePath() + "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.ws.Do(ctx, http.MethodPost, path, contentRequest{Content: content}, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetMessage fetches the current state of a message.
func (c *Client) GetMessage(ctx context.Context, conversationID, messageID string) (*Message, error) {
	var msg Message
	if err := c.ws.Do(ctx, http.MethodGet, c.messagePath(conversationID, messageID), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetQueryResult fetches the execution state and data of a query attachment.
func (c *Client) GetQueryResult(ctx context.Context, conversationID, messageID, attachmentID string) (*StatementResponse, error) {
	var out struct {
		StatementResponse StatementResponse `json:"statement_response"`
	}
	path := c.messagePath(conversationID, messageID) + "/attachments/" + url.PathEscape(attachmentID) + "/query-result"
	if err := c.ws.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.StatementResponse, nil
}

// GetSpace fetches the space metadata.
func (c *Client) GetSpace(ctx context.Context) (*Space, error) {
	var space Space
	if err := c.ws.Do(ctx, http.MethodGet, c.spacePath(), nil, &space); err != nil {
		return nil, err
	}
	return &space, nil
}

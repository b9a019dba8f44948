package genie

import (
	"context"
	"fmt"

	"github.com/hyperjump/aibridge/internal/table"
)

// Genie asks questions in one conversation space.
type Genie struct {
	api         API
	poller      *Poller
	description string
}

// New creates a Genie over api and loads the space description. Poller
// options tune polling and logging.
func New(ctx context.Context, api API, truncator *table.Truncator, opts ...Option) (*Genie, error) {
	space, err := api.GetSpace(ctx)
	if err != nil {
		return nil, fmt.Errorf("get space: %w", err)
	}
	return &Genie{
		api:         api,
		poller:      NewPoller(api, truncator, opts...),
		description: space.Description,
	}, nil
}

// Description returns the space description loaded at construction.
func (g *Genie) Description() string { return g.description }

// AskQuestion sends question to a new conversation, or to conversationID
// when it is non-empty, and waits for the answer. Remote failures and
// timeouts come back in Response.Result; only remote-call errors are
// returned. The response always names the conversation so the caller can
// continue it.
func (g *Genie) AskQuestion(ctx context.Context, question, conversationID string, resultAsJSON bool) (*Response, error) {
	var (
		ref *MessageRef
		err error
	)
	if conversationID == "" {
		ref, err = g.api.StartConversation(ctx, question)
	} else {
		ref, err = g.api.CreateMessage(ctx, conversationID, question)
	}
	if err != nil {
		return nil, err
	}
	if ref.ConversationID == "" {
		ref.ConversationID = conversationID
	}

	format := table.Markdown
	if resultAsJSON {
		format = table.JSON
	}
	res, err := g.poller.PollMessage(ctx, ref.ConversationID, ref.MessageID, format)
	if err != nil {
		return nil, err
	}
	resp := res.Response
	if resp.ConversationID == "" {
		resp.ConversationID = ref.ConversationID
	}
	return resp, nil
}

package genie

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/aibridge/internal/table"
	"github.com/hyperjump/aibridge/pkg/utils"
	"go.uber.org/zap"
)

const (
	// DefaultMaxIterations bounds each polling stage.
	DefaultMaxIterations = 50
	// DefaultPollInterval is the fixed delay between polls.
	DefaultPollInterval = 5 * time.Second
)

// Outcome classifies how a polling stage ended.
type Outcome int

const (
	// OutcomeSuccess means the remote job produced an answer.
	OutcomeSuccess Outcome = iota
	// OutcomeTerminal means the remote job ended without an answer.
	OutcomeTerminal
	// OutcomeTimeout means the iteration budget ran out.
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PollResult is the tagged result of one polling stage.
type PollResult struct {
	Outcome  Outcome
	Response *Response
}

// QueryRef names a query attachment found on a completed message.
type QueryRef struct {
	ConversationID string
	MessageID      string
	AttachmentID   string
	Query          string
	Description    string
}

// Poller drives remote messages and query results to a settled state.
// It holds no conversation state between calls.
type Poller struct {
	api           API
	truncator     *table.Truncator
	maxIterations int
	interval      time.Duration
	logger        *zap.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets a logger for debug output (waiting iterations, outcomes).
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(p *Poller) { p.maxIterations = n }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// NewPoller creates a poller over api that serializes results with truncator.
func NewPoller(api API, truncator *table.Truncator, opts ...Option) *Poller {
	p := &Poller{
		api:           api,
		truncator:     truncator,
		maxIterations: DefaultMaxIterations,
		interval:      DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxIterations <= 0 {
		p.maxIterations = DefaultMaxIterations
	}
	if p.interval < 0 {
		p.interval = 0
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

func (p *Poller) timeoutSuffix() string {
	return fmt.Sprintf("timed out after %d iterations of %s", p.maxIterations, formatSeconds(p.interval))
}

func formatSeconds(d time.Duration) string {
	secs := d.Seconds()
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%g seconds", secs)
}

// PollMessage polls a message until it completes, fails or the iteration
// budget runs out. A completed message carrying a query attachment
// continues into PollQueryResult. Only remote-call errors are returned.
func (p *Poller) PollMessage(ctx context.Context, conversationID, messageID string, format table.Format) (*PollResult, error) {
	for attempt := 1; attempt <= p.maxIterations; attempt++ {
		msg, err := p.api.GetMessage(ctx, conversationID, messageID)
		if err != nil {
			return nil, err
		}

		switch msg.Status {
		case StatusCompleted:
			if att := findQueryAttachment(msg.Attachments); att != nil {
				ref := QueryRef{
					ConversationID: msg.ConversationID,
					MessageID:      messageID,
					AttachmentID:   att.AttachmentID,
					Query:          att.Query.Query,
					Description:    att.Query.Description,
				}
				if ref.ConversationID == "" {
					ref.ConversationID = conversationID
				}
				return p.PollQueryResult(ctx, ref, format)
			}
			text := ""
			if att := findTextAttachment(msg.Attachments); att != nil {
				text = att.Text.Content
			}
			p.logger.Debug("message completed with text", zap.String("message_id", messageID))
			return &PollResult{
				Outcome:  OutcomeSuccess,
				Response: &Response{Result: text, ConversationID: msg.ConversationID},
			}, nil

		case StatusCancelled, StatusQueryResultExpired:
			p.logger.Debug("message ended", zap.String("status", string(msg.Status)))
			return &PollResult{
				Outcome:  OutcomeTerminal,
				Response: &Response{Result: fmt.Sprintf("Genie query %s.", strings.ToLower(string(msg.Status)))},
			}, nil

		case StatusFailed:
			reason := errorText(msg.Error)
			if reason == "" {
				reason = "Unknown error"
			}
			p.logger.Debug("message failed", zap.String("error", reason))
			return &PollResult{
				Outcome:  OutcomeTerminal,
				Response: &Response{Result: "Genie query failed with error: " + reason},
			}, nil
		}

		p.logger.Debug("waiting for message",
			zap.String("status", string(msg.Status)),
			zap.Int("attempt", attempt),
		)
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
	}
	return &PollResult{
		Outcome: OutcomeTimeout,
		Response: &Response{
			Result:         "Genie query " + p.timeoutSuffix(),
			ConversationID: conversationID,
		},
	}, nil
}

// PollQueryResult polls the execution of a query attachment until its data
// is ready, it settles in another state or the iteration budget runs out.
func (p *Poller) PollQueryResult(ctx context.Context, ref QueryRef, format table.Format) (*PollResult, error) {
	for attempt := 1; attempt <= p.maxIterations; attempt++ {
		stmt, err := p.api.GetQueryResult(ctx, ref.ConversationID, ref.MessageID, ref.AttachmentID)
		if err != nil {
			return nil, err
		}

		switch stmt.Status.State {
		case StateSucceeded:
			result, err := p.serialize(stmt, format)
			if err != nil {
				return nil, err
			}
			return &PollResult{
				Outcome: OutcomeSuccess,
				Response: &Response{
					Result:         result,
					Query:          ref.Query,
					Description:    ref.Description,
					ConversationID: stmt.ConversationID,
				},
			}, nil

		case StateRunning, StatePending:
			p.logger.Debug("waiting for query result",
				zap.String("state", string(stmt.Status.State)),
				zap.Int("attempt", attempt),
			)
			if err := p.wait(ctx); err != nil {
				return nil, err
			}

		default:
			return &PollResult{
				Outcome: OutcomeTerminal,
				Response: &Response{
					Result:         fmt.Sprintf("No query result: %s", stmt.Status.State),
					Query:          ref.Query,
					Description:    ref.Description,
					ConversationID: stmt.ConversationID,
				},
			}, nil
		}
	}
	return &PollResult{
		Outcome: OutcomeTimeout,
		Response: &Response{
			Result:         "Genie query for result " + p.timeoutSuffix(),
			Query:          ref.Query,
			Description:    ref.Description,
			ConversationID: ref.ConversationID,
		},
	}, nil
}

func (p *Poller) serialize(stmt *StatementResponse, format table.Format) (string, error) {
	if stmt.Result == nil || stmt.Manifest == nil {
		return table.Empty, nil
	}
	tbl, err := table.FromStatement(stmt.Manifest.Schema.Columns, stmt.Result.DataArray)
	if err != nil {
		return "", err
	}
	return p.truncator.Truncate(tbl, format), nil
}

// wait sleeps one poll interval. Cancelling ctx ends the wait early.
func (p *Poller) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func findQueryAttachment(atts []Attachment) *Attachment {
	for i := range atts {
		if atts[i].Query != nil {
			return &atts[i]
		}
	}
	return nil
}

func findTextAttachment(atts []Attachment) *Attachment {
	for i := range atts {
		if atts[i].Text != nil {
			return &atts[i]
		}
	}
	return nil
}

package genie

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/aibridge/internal/table"
	"github.com/hyperjump/aibridge/internal/tokenizer"
)

// fakeAPI replays scripted remote states. The last scripted state repeats.
type fakeAPI struct {
	messages []*Message
	results  []*StatementResponse
	space    *Space

	msgErr error

	msgCalls    int
	resultCalls int
	started     []string
	created     map[string]string
	resultArgs  []string
}

func (f *fakeAPI) StartConversation(_ context.Context, content string) (*MessageRef, error) {
	f.started = append(f.started, content)
	return &MessageRef{ConversationID: "conv-new", MessageID: "msg-1"}, nil
}

func (f *fakeAPI) CreateMessage(_ context.Context, conversationID, content string) (*MessageRef, error) {
	if f.created == nil {
		f.created = map[string]string{}
	}
	f.created[conversationID] = content
	return &MessageRef{ConversationID: conversationID, MessageID: "msg-2"}, nil
}

func (f *fakeAPI) GetMessage(_ context.Context, _, _ string) (*Message, error) {
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	i := f.msgCalls
	if i >= len(f.messages) {
		i = len(f.messages) - 1
	}
	f.msgCalls++
	return f.messages[i], nil
}

func (f *fakeAPI) GetQueryResult(_ context.Context, conversationID, messageID, attachmentID string) (*StatementResponse, error) {
	f.resultArgs = []string{conversationID, messageID, attachmentID}
	i := f.resultCalls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.resultCalls++
	return f.results[i], nil
}

func (f *fakeAPI) GetSpace(context.Context) (*Space, error) {
	if f.space == nil {
		return &Space{}, nil
	}
	return f.space, nil
}

func s(v string) *string { return &v }

func queryMessage() *Message {
	return &Message{
		Status: StatusCompleted,
		Attachments: []Attachment{
			{AttachmentID: "att-text", Text: &TextAttachment{Content: "here you go"}},
			{AttachmentID: "att-q", Query: &QueryContent{Query: "SELECT name, n FROM t", Description: "names and counts"}},
		},
	}
}

func threeRowResult() *StatementResponse {
	return &StatementResponse{
		Status: StatementStatus{State: StateSucceeded},
		Manifest: &Manifest{Schema: Schema{Columns: []table.TypedColumn{
			{Name: "name", TypeName: table.TypeString},
			{Name: "n", TypeName: table.TypeInt},
		}}},
		Result: &StatementResult{DataArray: [][]*string{
			{s("alpha"), s("1")},
			{s("beta"), s("2")},
			{s("gamma"), nil},
		}},
	}
}

func newTestGenie(t *testing.T, api API, opts ...Option) *Genie {
	t.Helper()
	opts = append([]Option{WithPollInterval(0)}, opts...)
	g, err := New(context.Background(), api, table.NewTruncator(tokenizer.WordCounter{}, 1000), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestAskQuestion_PendingThenText(t *testing.T) {
	api := &fakeAPI{messages: []*Message{
		{Status: MessageStatus("PENDING")},
		{Status: MessageStatus("PENDING")},
		{Status: StatusCompleted, Attachments: []Attachment{{Text: &TextAttachment{Content: "42 rows"}}}},
		{Status: StatusFailed},
	}}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "how many rows?", "", false)
	if err != nil {
		t.Fatalf("AskQuestion: %v", err)
	}
	if resp.Result != "42 rows" {
		t.Errorf("Result = %q, want %q", resp.Result, "42 rows")
	}
	if resp.Query != "" || resp.Description != "" {
		t.Errorf("text answer should have no query/description: %+v", resp)
	}
	if api.msgCalls != 3 {
		t.Errorf("GetMessage calls = %d, want 3", api.msgCalls)
	}
	if resp.ConversationID != "conv-new" {
		t.Errorf("ConversationID = %q, want backfilled conv-new", resp.ConversationID)
	}
	if len(api.started) != 1 || api.started[0] != "how many rows?" {
		t.Errorf("started = %v", api.started)
	}
}

func TestAskQuestion_ContinuesConversation(t *testing.T) {
	api := &fakeAPI{messages: []*Message{
		{Status: StatusCompleted, ConversationID: "conv-7", Attachments: []Attachment{{Text: &TextAttachment{Content: "ok"}}}},
	}}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "and now?", "conv-7", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(api.started) != 0 {
		t.Error("should not start a new conversation")
	}
	if api.created["conv-7"] != "and now?" {
		t.Errorf("created = %v", api.created)
	}
	if resp.ConversationID != "conv-7" {
		t.Errorf("ConversationID = %q", resp.ConversationID)
	}
}

func TestAskQuestion_MessageTimeout(t *testing.T) {
	api := &fakeAPI{messages: []*Message{{Status: StatusExecutingQuery}}}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "q", "", false)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if !strings.Contains(resp.Result, "timed out") {
		t.Errorf("Result = %q, want timeout message", resp.Result)
	}
	if api.msgCalls != DefaultMaxIterations {
		t.Errorf("GetMessage calls = %d, want %d", api.msgCalls, DefaultMaxIterations)
	}
	if resp.ConversationID != "conv-new" {
		t.Errorf("ConversationID = %q", resp.ConversationID)
	}
}

func TestAskQuestion_QueryResultSuccess(t *testing.T) {
	msg := queryMessage()
	msg.ConversationID = "conv-remote"
	api := &fakeAPI{
		messages: []*Message{msg},
		results: []*StatementResponse{
			{Status: StatementStatus{State: StatePending}},
			{Status: StatementStatus{State: StateRunning}},
			threeRowResult(),
		},
	}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "names?", "", false)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.TrimSpace(table.Render(mustTable(t, threeRowResult()), table.Markdown, 3))
	if resp.Result != want {
		t.Errorf("Result:\n%s\nwant:\n%s", resp.Result, want)
	}
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if !strings.Contains(resp.Result, name) {
			t.Errorf("Result missing row %q", name)
		}
	}
	if resp.Query != "SELECT name, n FROM t" || resp.Description != "names and counts" {
		t.Errorf("query/description = %q / %q", resp.Query, resp.Description)
	}
	if api.resultCalls != 3 {
		t.Errorf("GetQueryResult calls = %d, want 3", api.resultCalls)
	}
	if got := strings.Join(api.resultArgs, ","); got != "conv-remote,msg-1,att-q" {
		t.Errorf("query result fetched with %s", got)
	}
	if resp.ConversationID != "conv-new" {
		t.Errorf("ConversationID = %q, want conv-new", resp.ConversationID)
	}
}

func TestAskQuestion_QueryResultJSON(t *testing.T) {
	api := &fakeAPI{messages: []*Message{queryMessage()}, results: []*StatementResponse{threeRowResult()}}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "names?", "", true)
	if err != nil {
		t.Fatal(err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(resp.Result), &records); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, resp.Result)
	}
	if len(records) != 3 || records[2]["name"] != "gamma" || records[2]["n"] != nil {
		t.Errorf("records = %v", records)
	}
}

func TestAskQuestion_QueryResultEmpty(t *testing.T) {
	empty := threeRowResult()
	empty.Result = nil
	api := &fakeAPI{messages: []*Message{queryMessage()}, results: []*StatementResponse{empty}}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "q", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != table.Empty {
		t.Errorf("Result = %q, want %q", resp.Result, table.Empty)
	}
}

func TestAskQuestion_QueryResultTerminal(t *testing.T) {
	api := &fakeAPI{
		messages: []*Message{queryMessage()},
		results:  []*StatementResponse{{Status: StatementStatus{State: StateFailed}}},
	}
	g := newTestGenie(t, api)

	resp, err := g.AskQuestion(context.Background(), "q", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != "No query result: FAILED" {
		t.Errorf("Result = %q", resp.Result)
	}
	if resp.Query != "SELECT name, n FROM t" {
		t.Errorf("Query = %q", resp.Query)
	}
}

func TestAskQuestion_QueryResultTimeout(t *testing.T) {
	api := &fakeAPI{
		messages: []*Message{queryMessage()},
		results:  []*StatementResponse{{Status: StatementStatus{State: StateRunning}}},
	}
	g := newTestGenie(t, api, WithMaxIterations(4))

	resp, err := g.AskQuestion(context.Background(), "q", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Result, "Genie query for result timed out after 4 iterations") {
		t.Errorf("Result = %q", resp.Result)
	}
	if resp.Description != "names and counts" {
		t.Errorf("Description = %q", resp.Description)
	}
	if api.resultCalls != 4 {
		t.Errorf("GetQueryResult calls = %d, want 4", api.resultCalls)
	}
}

func TestAskQuestion_TerminalMessageStates(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want string
	}{
		{"cancelled", &Message{Status: StatusCancelled}, "Genie query cancelled."},
		{"expired", &Message{Status: StatusQueryResultExpired}, "Genie query query_result_expired."},
		{"failed without error", &Message{Status: StatusFailed}, "Genie query failed with error: Unknown error"},
		{"failed with string", &Message{Status: StatusFailed, Error: json.RawMessage(`"warehouse stopped"`)}, "Genie query failed with error: warehouse stopped"},
		{"failed with object", &Message{Status: StatusFailed, Error: json.RawMessage(`{"error":"bad sql","type":"SQL"}`)}, "Genie query failed with error: bad sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{messages: []*Message{tt.msg}}
			g := newTestGenie(t, api)
			resp, err := g.AskQuestion(context.Background(), "q", "", false)
			if err != nil {
				t.Fatal(err)
			}
			if resp.Result != tt.want {
				t.Errorf("Result = %q, want %q", resp.Result, tt.want)
			}
			if resp.ConversationID != "conv-new" {
				t.Errorf("ConversationID = %q, want backfilled", resp.ConversationID)
			}
			if api.msgCalls != 1 {
				t.Errorf("terminal state should stop polling, got %d calls", api.msgCalls)
			}
		})
	}
}

func TestAskQuestion_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	api := &fakeAPI{msgErr: boom}
	g := newTestGenie(t, api)

	if _, err := g.AskQuestion(context.Background(), "q", "", false); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestPollMessage_ContextCancelled(t *testing.T) {
	api := &fakeAPI{messages: []*Message{{Status: StatusAskingAI}}}
	p := NewPoller(api, table.NewTruncator(tokenizer.WordCounter{}, 100), WithPollInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.PollMessage(ctx, "c", "m", table.Markdown)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if api.msgCalls != 1 {
		t.Errorf("GetMessage calls = %d, want 1", api.msgCalls)
	}
}

func TestPollMessage_Outcomes(t *testing.T) {
	tr := table.NewTruncator(tokenizer.WordCounter{}, 100)
	tests := []struct {
		name string
		api  *fakeAPI
		want Outcome
	}{
		{"text", &fakeAPI{messages: []*Message{{Status: StatusCompleted, Attachments: []Attachment{{Text: &TextAttachment{Content: "x"}}}}}}, OutcomeSuccess},
		{"query", &fakeAPI{messages: []*Message{queryMessage()}, results: []*StatementResponse{threeRowResult()}}, OutcomeSuccess},
		{"failed", &fakeAPI{messages: []*Message{{Status: StatusFailed}}}, OutcomeTerminal},
		{"query failed", &fakeAPI{messages: []*Message{queryMessage()}, results: []*StatementResponse{{Status: StatementStatus{State: StateCanceled}}}}, OutcomeTerminal},
		{"timeout", &fakeAPI{messages: []*Message{{Status: StatusSubmitted}}}, OutcomeTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoller(tt.api, tr, WithPollInterval(0), WithMaxIterations(3))
			res, err := p.PollMessage(context.Background(), "c", "m", table.Markdown)
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", res.Outcome, tt.want)
			}
		})
	}
}

func TestPoller_DefaultTimeoutText(t *testing.T) {
	p := NewPoller(&fakeAPI{}, nil)
	if got := p.timeoutSuffix(); got != "timed out after 50 iterations of 5 seconds" {
		t.Errorf("timeoutSuffix = %q", got)
	}
}

func TestNew_LoadsDescription(t *testing.T) {
	g := newTestGenie(t, &fakeAPI{space: &Space{Description: "sales data"}})
	if g.Description() != "sales data" {
		t.Errorf("Description = %q", g.Description())
	}
}

func mustTable(t *testing.T, stmt *StatementResponse) *table.ResultTable {
	t.Helper()
	tbl, err := table.FromStatement(stmt.Manifest.Schema.Columns, stmt.Result.DataArray)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcode/checkpoint"
	"tcode/model"
	"tcode/permission"
	"tcode/provider/testutil"
	"tcode/retrieval"
	"tcode/storage"
	"tcode/tools"
)

// scriptedSender replays responses and records every request.
type scriptedSender struct {
	mu        sync.Mutex
	responses []*model.Response
	requests  [][]model.Message
	err       error
}

func (s *scriptedSender) SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, append([]model.Message(nil), messages...))
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return testutil.TextResponse("mock", "mock-model", "done"), nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

// recordingConfirmer answers from fixed values and records what it saw.
type recordingConfirmer struct {
	approve  map[string]bool
	decision BatchDecision

	asked   []tools.Change
	batches [][]tools.Change
	plans   [][]tools.Change
}

func (c *recordingConfirmer) ConfirmWrite(ctx context.Context, change tools.Change) (bool, error) {
	c.asked = append(c.asked, change)
	return c.approve[change.Path], nil
}

func (c *recordingConfirmer) ConfirmBatch(ctx context.Context, changes []tools.Change) (BatchDecision, error) {
	c.batches = append(c.batches, changes)
	return c.decision, nil
}

func (c *recordingConfirmer) ShowPlan(ctx context.Context, changes []tools.Change) {
	c.plans = append(c.plans, changes)
}

type fixedRetriever struct {
	snippets []retrieval.Snippet
	err      error
	queries  []string
}

func (r *fixedRetriever) FindRelevant(ctx context.Context, query string, topK int) ([]retrieval.Snippet, error) {
	r.queries = append(r.queries, query)
	return r.snippets, r.err
}

type invalidatingRetriever struct {
	fixedRetriever
	invalidated int
}

func (r *invalidatingRetriever) Invalidate() { r.invalidated++ }

type harness struct {
	engine      *Engine
	db          *storage.DB
	sender      *scriptedSender
	confirmer   *recordingConfirmer
	checkpoints *checkpoint.Manager
	root        string
}

func newHarness(t *testing.T, opts Options, responses ...*model.Response) *harness {
	t.Helper()

	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	exec, err := tools.NewExecutor(root)
	require.NoError(t, err)

	h := &harness{
		db:          db,
		sender:      &scriptedSender{responses: responses},
		confirmer:   &recordingConfirmer{approve: map[string]bool{}},
		checkpoints: checkpoint.NewManager(db),
		root:        root,
	}
	h.engine = New(Deps{
		Store:       db,
		Sender:      h.sender,
		Executor:    exec,
		Checkpoints: h.checkpoints,
		Confirmer:   h.confirmer,
	}, opts)
	return h
}

func (h *harness) messages(t *testing.T) []model.Message {
	t.Helper()
	msgs, err := h.db.GetMessages(context.Background(), h.engine.ConversationID(), 0)
	require.NoError(t, err)
	return chronological(msgs)
}

func (h *harness) checkpointCount(t *testing.T) int {
	t.Helper()
	list, err := h.checkpoints.List(context.Background(), 0)
	require.NoError(t, err)
	return len(list)
}

func toolResults(msgs []model.Message) map[string]string {
	out := make(map[string]string)
	for _, m := range msgs {
		if m.Role == model.RoleTool {
			out[m.Metadata.ToolCallID] = m.Content
		}
	}
	return out
}

func TestProcessRequestWithoutTools(t *testing.T) {
	h := newHarness(t, DefaultOptions(), testutil.TextResponse("anthropic", "claude", "It prints hello."))

	res, err := h.engine.ProcessRequest(context.Background(), "What does main.go do?", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, "It prints hello.", res.Content)
	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	conv, err := h.db.GetConversation(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.Title)

	msgs := h.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "claude", msgs[1].Model)

	require.Len(t, h.sender.requests, 1)
	system := h.sender.requests[0][0]
	assert.Equal(t, model.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "<environment>")
	assert.Contains(t, system.Content, "Working directory: "+h.root)
	assert.NotContains(t, system.Content, "<relevant_code>", "no snippets means no snippet block")
}

func TestToolRoundOrdering(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("ollama", "llama3.1",
			testutil.ReadCall("call_1", "a.txt"),
			model.ToolCall{ID: "call_2", Name: "list_dir", Arguments: map[string]any{}},
			testutil.ReadCall("call_3", "missing.txt"),
		),
		testutil.TextResponse("ollama", "llama3.1", "a.txt says hi"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "a.txt"), []byte("hi"), 0644))

	res, err := h.engine.ProcessRequest(context.Background(), "read a.txt", RequestOptions{Mode: permission.AutoEdit})
	require.NoError(t, err)
	assert.Equal(t, "a.txt says hi", res.Content)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 30, res.Usage.TotalTokens, "usage is summed across rounds")

	type row struct {
		Role   model.Role
		CallID string
		Calls  int
	}
	var got []row
	for _, m := range h.messages(t) {
		got = append(got, row{Role: m.Role, CallID: m.Metadata.ToolCallID, Calls: len(m.Metadata.ToolCalls)})
	}
	want := []row{
		{Role: model.RoleUser},
		{Role: model.RoleAssistant, Calls: 3},
		{Role: model.RoleTool, CallID: "call_1"},
		{Role: model.RoleTool, CallID: "call_2"},
		{Role: model.RoleTool, CallID: "call_3"},
		{Role: model.RoleAssistant},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("message sequence mismatch (-want +got):\n%s", diff)
	}

	results := toolResults(h.messages(t))
	assert.Equal(t, "hi", results["call_1"])
	assert.Contains(t, results["call_2"], "a.txt")
	assert.True(t, strings.HasPrefix(results["call_3"], "Error: read_file:"), results["call_3"])

	// The continuation carries the tool results but no fresh environment.
	require.Len(t, h.sender.requests, 2)
	second := h.sender.requests[1]
	assert.NotContains(t, second[0].Content, "<environment>")
	assert.Equal(t, model.RoleTool, second[len(second)-1].Role)
}

func TestContinuationKeepsSnippets(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("ollama", "llama3.1", testutil.ReadCall("call_1", "x.go")),
		testutil.TextResponse("ollama", "llama3.1", "x is empty"),
	)
	r := &fixedRetriever{snippets: []retrieval.Snippet{
		{FilePath: "x.go", StartLine: 1, EndLine: 1, Content: "package x", Score: 0.5},
	}}
	h.engine.retriever = r
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "x.go"), []byte("package x"), 0644))

	_, err := h.engine.ProcessRequest(context.Background(), "look at x", RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"look at x", "look at x"}, r.queries)
	require.Len(t, h.sender.requests, 2)
	for i, req := range h.sender.requests {
		assert.Contains(t, req[0].Content, "<relevant_code>", "request %d", i)
	}
	assert.Contains(t, h.sender.requests[0][0].Content, "<environment>")
	assert.NotContains(t, h.sender.requests[1][0].Content, "<environment>")
}

func TestUnknownModeIsRejected(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude", testutil.WriteCall("w1", "a.txt", "x")),
	)

	_, err := h.engine.ProcessRequest(context.Background(), "write a.txt", RequestOptions{Mode: "bogus"})
	require.ErrorIs(t, err, permission.ErrInvalidMode)

	assert.NoFileExists(t, filepath.Join(h.root, "a.txt"))
	assert.Empty(t, h.sender.requests)
	assert.Empty(t, h.confirmer.asked)
	assert.Empty(t, h.engine.ConversationID())
}

func TestUnknownToolBecomesErrorResult(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("ollama", "llama3.1",
			model.ToolCall{ID: "call_x", Name: "run_shell", Arguments: map[string]any{"cmd": "ls"}},
			model.ToolCall{ID: "call_y", Name: "write_file", Arguments: map[string]any{"path": "x.txt"}},
		),
		testutil.TextResponse("ollama", "llama3.1", "sorry"),
	)

	_, err := h.engine.ProcessRequest(context.Background(), "list files", RequestOptions{Mode: permission.AutoEdit})
	require.NoError(t, err)

	results := toolResults(h.messages(t))
	assert.Contains(t, results["call_x"], "Error: unknown tool")
	assert.Contains(t, results["call_y"], "Error: invalid tool arguments")
	assert.NoFileExists(t, filepath.Join(h.root, "x.txt"))
}

func TestPlanOnlyBatchChangesNothing(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude",
			testutil.WriteCall("w1", "one.txt", "1"),
			testutil.WriteCall("w2", "two.txt", "2"),
			model.ToolCall{ID: "w3", Name: "delete_file", Arguments: map[string]any{"path": "keep.txt"}},
		),
		testutil.TextResponse("anthropic", "claude", "Here is the plan."),
	)
	keep := filepath.Join(h.root, "keep.txt")
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0644))

	res, err := h.engine.ProcessRequest(context.Background(), "scaffold", RequestOptions{Mode: permission.PlanOnly})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(h.root, "one.txt"))
	assert.NoFileExists(t, filepath.Join(h.root, "two.txt"))
	assert.FileExists(t, keep)
	assert.Equal(t, 0, h.checkpointCount(t))
	assert.Empty(t, res.Writes)

	results := toolResults(h.messages(t))
	for _, id := range []string{"w1", "w2", "w3"} {
		assert.Equal(t, "Skipped: plan-only mode", results[id])
	}

	require.Len(t, h.confirmer.plans, 1)
	kinds := []tools.ChangeKind{}
	for _, c := range h.confirmer.plans[0] {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []tools.ChangeKind{tools.ChangeCreate, tools.ChangeCreate, tools.ChangeDelete}, kinds)
	assert.Len(t, res.Planned, 3)
	assert.Empty(t, h.confirmer.batches, "plan-only never prompts")
}

func TestDeclinedSingleWrite(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude", testutil.WriteCall("w1", "main.go", "package changed\n")),
		testutil.TextResponse("anthropic", "claude", "Okay, left it alone."),
	)
	path := filepath.Join(h.root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))

	res, err := h.engine.ProcessRequest(context.Background(), "rewrite main.go", RequestOptions{Mode: permission.Default})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
	assert.Equal(t, 0, h.checkpointCount(t))
	assert.Empty(t, res.Writes)

	require.Len(t, h.confirmer.asked, 1)
	assert.Equal(t, tools.ChangeModify, h.confirmer.asked[0].Kind)
	assert.Equal(t, "Cancelled by user", toolResults(h.messages(t))["w1"])
}

func TestApprovedSingleWriteCheckpointsFirst(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude", testutil.WriteCall("w1", "docs/new.md", "# New\n")),
		testutil.TextResponse("anthropic", "claude", "Created."),
	)
	h.confirmer.approve["docs/new.md"] = true

	res, err := h.engine.ProcessRequest(context.Background(), "add docs", RequestOptions{Mode: permission.Default})
	require.NoError(t, err)

	path := filepath.Join(h.root, "docs", "new.md")
	assert.FileExists(t, path)
	require.Len(t, res.Writes, 1)
	assert.True(t, res.Writes[0].Success)
	assert.Equal(t, tools.ChangeCreate, res.Writes[0].Kind)

	// Reverting the checkpoint restores absence.
	_, err = h.checkpoints.Revert(context.Background(), res.Writes[0].CheckpointID)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestAppliedWritesInvalidateRetriever(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude", testutil.WriteCall("w1", "a.txt", "a")),
		testutil.TextResponse("anthropic", "claude", "Wrote a."),
		testutil.ToolCallResponse("anthropic", "claude", testutil.WriteCall("w2", "b.txt", "b")),
		testutil.TextResponse("anthropic", "claude", "Planned b."),
	)
	r := &invalidatingRetriever{}
	h.engine.retriever = r

	_, err := h.engine.ProcessRequest(context.Background(), "write a", RequestOptions{Mode: permission.AutoEdit})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(h.root, "a.txt"))
	assert.Equal(t, 1, r.invalidated)

	_, err = h.engine.ProcessRequest(context.Background(), "plan b", RequestOptions{Mode: permission.PlanOnly})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(h.root, "b.txt"))
	assert.Equal(t, 1, r.invalidated, "skipped writes leave the index alone")
}

func TestAutoEditBatchAppliesAll(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		testutil.ToolCallResponse("anthropic", "claude",
			testutil.WriteCall("w1", "a.txt", "new a"),
			testutil.WriteCall("w2", "b.txt", "new b"),
		),
		testutil.TextResponse("anthropic", "claude", "Both updated."),
	)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "a.txt"), []byte("old a"), 0644))

	res, err := h.engine.ProcessRequest(context.Background(), "update both", RequestOptions{Mode: permission.AutoEdit})
	require.NoError(t, err)

	assert.Empty(t, h.confirmer.batches)
	assert.Empty(t, h.confirmer.asked)
	assert.Equal(t, 2, h.checkpointCount(t))
	require.Len(t, res.Writes, 2)
	for _, w := range res.Writes {
		assert.True(t, w.Success, w.Path)
		assert.NotEmpty(t, w.CheckpointID)
	}

	data, err := os.ReadFile(filepath.Join(h.root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new a", string(data))

	_, err = h.checkpoints.Revert(context.Background(), res.Writes[0].CheckpointID)
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(h.root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old a", string(data))
}

func TestDefaultBatchDecisions(t *testing.T) {
	batch := func() *model.Response {
		return testutil.ToolCallResponse("anthropic", "claude",
			testutil.WriteCall("w1", "a.txt", "a"),
			testutil.WriteCall("w2", "b.txt", "b"),
		)
	}

	t.Run("cancel", func(t *testing.T) {
		h := newHarness(t, DefaultOptions(), batch(), testutil.TextResponse("anthropic", "claude", "ok"))
		h.confirmer.decision = BatchCancel

		_, err := h.engine.ProcessRequest(context.Background(), "write", RequestOptions{Mode: permission.Default})
		require.NoError(t, err)

		require.Len(t, h.confirmer.batches, 1)
		assert.Len(t, h.confirmer.batches[0], 2)
		assert.NoFileExists(t, filepath.Join(h.root, "a.txt"))
		assert.NoFileExists(t, filepath.Join(h.root, "b.txt"))
		results := toolResults(h.messages(t))
		assert.Equal(t, "Cancelled by user", results["w1"])
		assert.Equal(t, "Cancelled by user", results["w2"])
	})

	t.Run("apply all", func(t *testing.T) {
		h := newHarness(t, DefaultOptions(), batch(), testutil.TextResponse("anthropic", "claude", "ok"))
		h.confirmer.decision = BatchApplyAll

		res, err := h.engine.ProcessRequest(context.Background(), "write", RequestOptions{Mode: permission.Default})
		require.NoError(t, err)

		assert.Empty(t, h.confirmer.asked, "apply-all does not ask per file")
		assert.FileExists(t, filepath.Join(h.root, "a.txt"))
		assert.FileExists(t, filepath.Join(h.root, "b.txt"))
		assert.Len(t, res.Writes, 2)
		assert.Equal(t, 2, h.checkpointCount(t))
	})

	t.Run("review each", func(t *testing.T) {
		h := newHarness(t, DefaultOptions(), batch(), testutil.TextResponse("anthropic", "claude", "ok"))
		h.confirmer.decision = BatchReviewEach
		h.confirmer.approve["a.txt"] = true

		res, err := h.engine.ProcessRequest(context.Background(), "write", RequestOptions{Mode: permission.Default})
		require.NoError(t, err)

		assert.Len(t, h.confirmer.asked, 2)
		assert.FileExists(t, filepath.Join(h.root, "a.txt"))
		assert.NoFileExists(t, filepath.Join(h.root, "b.txt"))
		assert.Len(t, res.Writes, 1)
		assert.Equal(t, 1, h.checkpointCount(t))

		results := toolResults(h.messages(t))
		assert.Contains(t, results["w1"], "Wrote")
		assert.Equal(t, "Cancelled by user", results["w2"])
	})
}

func TestToolRoundLimit(t *testing.T) {
	h := newHarness(t, Options{MaxToolRounds: 2},
		testutil.ToolCallResponse("ollama", "llama3.1", model.ToolCall{ID: "loop", Name: "list_dir", Arguments: map[string]any{}}),
	)

	res, err := h.engine.ProcessRequest(context.Background(), "keep going", RequestOptions{})
	require.ErrorIs(t, err, ErrToolRoundLimit)
	assert.Contains(t, err.Error(), "after 2 rounds")
	assert.Equal(t, 2, res.Rounds)
	assert.Len(t, h.sender.requests, 3)

	// Every assistant tool call is still answered.
	msgs := h.messages(t)
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Contains(t, last.Content, "tool round limit")
}

func TestRetrievalIsOptional(t *testing.T) {
	t.Run("zero snippets", func(t *testing.T) {
		h := newHarness(t, DefaultOptions())
		r := &fixedRetriever{}
		h.engine.retriever = r

		_, err := h.engine.ProcessRequest(context.Background(), "where is the retry logic?", RequestOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"where is the retry logic?"}, r.queries)
		assert.NotContains(t, h.sender.requests[0][0].Content, "<relevant_code>")
	})

	t.Run("snippets are included", func(t *testing.T) {
		h := newHarness(t, DefaultOptions())
		h.engine.retriever = &fixedRetriever{snippets: []retrieval.Snippet{
			{FilePath: "orchestrator/retry.go", StartLine: 1, EndLine: 3, Content: "func Delay() {}", Score: 0.8},
		}}

		_, err := h.engine.ProcessRequest(context.Background(), "retry", RequestOptions{})
		require.NoError(t, err)
		system := h.sender.requests[0][0].Content
		assert.Contains(t, system, "--- orchestrator/retry.go:1-3 (score 0.80)")
		assert.Contains(t, system, "func Delay() {}")
	})

	t.Run("retriever errors are absorbed", func(t *testing.T) {
		h := newHarness(t, DefaultOptions())
		h.engine.retriever = &fixedRetriever{err: errors.New("index unavailable")}

		res, err := h.engine.ProcessRequest(context.Background(), "hello", RequestOptions{})
		require.NoError(t, err)
		assert.Equal(t, "done", res.Content)
	})
}

func TestSenderErrorPropagates(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	h.sender.err = errors.New("all providers failed")

	_, err := h.engine.ProcessRequest(context.Background(), "hello", RequestOptions{})
	require.EqualError(t, err, "all providers failed")

	msgs := h.messages(t)
	require.Len(t, msgs, 1, "the user message is kept")
	assert.Equal(t, model.RoleUser, msgs[0].Role)
}

func TestContinuationNeedsConversation(t *testing.T) {
	h := newHarness(t, DefaultOptions())

	_, err := h.engine.ProcessRequest(context.Background(), "", RequestOptions{})
	assert.ErrorIs(t, err, ErrNoConversation)

	assert.ErrorIs(t, h.engine.SetConversation(context.Background(), "nope"), storage.ErrConversationNotFound)
}

func TestResetConversationStartsNewOne(t *testing.T) {
	h := newHarness(t, DefaultOptions())
	ctx := context.Background()

	first, err := h.engine.ProcessRequest(ctx, "first", RequestOptions{})
	require.NoError(t, err)

	h.engine.ResetConversation()
	assert.Empty(t, h.engine.ConversationID())

	second, err := h.engine.ProcessRequest(ctx, "second", RequestOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)

	require.NoError(t, h.engine.SetConversation(ctx, first.ConversationID))
	assert.Equal(t, first.ConversationID, h.engine.ConversationID())
}

func TestChronologicalDropsOrphanToolResults(t *testing.T) {
	newestFirst := []model.Message{
		{Role: model.RoleAssistant, Content: "done"},
		{Role: model.RoleUser, Content: "next"},
		{Role: model.RoleTool, Content: "orphan"},
	}
	got := chronological(newestFirst)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleUser, got[0].Role)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
}

func TestDescribeProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0644))

	desc := describeProject(root)
	assert.Contains(t, desc, "Project type: Go module")
	assert.Contains(t, desc, "Working directory: "+root)
	assert.Equal(t, "unknown", detectProjectType(t.TempDir()))
}

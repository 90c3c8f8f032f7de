// Package engine runs one conversation turn: it assembles context, calls
// the model through the orchestrator and executes the tool calls the model
// requests until a response carries none.
package engine

import (
	"context"
	"errors"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"tcode/model"
	"tcode/permission"
	"tcode/retrieval"
	"tcode/storage"
	"tcode/tools"
)

var (
	// ErrCancelled reports that the user declined a write.
	ErrCancelled = errors.New("cancelled by user")
	// ErrToolRoundLimit is returned when the model keeps requesting tools
	// past Options.MaxToolRounds.
	ErrToolRoundLimit = errors.New("tool round limit reached")
	// ErrNoConversation is returned for a continuation request without an
	// active conversation.
	ErrNoConversation = errors.New("no active conversation")
)

// Tool results handed back to the model for writes that did not run.
const (
	resultCancelled = "Cancelled by user"
	resultPlanOnly  = "Skipped: plan-only mode"
)

// ConversationStore is the durable message log. GetMessages returns the
// newest messages first. *storage.DB implements it.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	AddMessage(ctx context.Context, msg model.Message) (string, error)
	GetMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

// Sender delivers a request to some model backend.
// *orchestrator.Orchestrator implements it.
type Sender interface {
	SendMessage(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error)
}

// Checkpointer snapshots a file before it is mutated.
// *checkpoint.Manager implements it.
type Checkpointer interface {
	Create(ctx context.Context, path string) (string, error)
}

// BatchDecision is the user's answer to a multi-file change.
type BatchDecision int

const (
	BatchCancel BatchDecision = iota
	BatchApplyAll
	BatchReviewEach
)

func (d BatchDecision) String() string {
	switch d {
	case BatchApplyAll:
		return "apply-all"
	case BatchReviewEach:
		return "review-each"
	default:
		return "cancel"
	}
}

// Confirmer asks the user about pending writes.
type Confirmer interface {
	ConfirmWrite(ctx context.Context, change tools.Change) (bool, error)
	ConfirmBatch(ctx context.Context, changes []tools.Change) (BatchDecision, error)
	ShowPlan(ctx context.Context, changes []tools.Change)
}

// Observer is notified around every tool execution.
type Observer interface {
	ToolStarted(call model.ToolCall)
	ToolFinished(call model.ToolCall, result string)
}

// Options tunes the request loop.
type Options struct {
	HistoryLimit  int
	RetrievalTopK int
	MaxToolRounds int
	MaxTokens     int
	SystemPrompt  string
}

// DefaultOptions returns the loop settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		HistoryLimit:  50,
		RetrievalTopK: 5,
		MaxToolRounds: 25,
		MaxTokens:     4096,
	}
}

// Deps are the collaborators of an Engine. Store, Sender, Executor and
// Checkpoints are required.
type Deps struct {
	Store       ConversationStore
	Sender      Sender
	Executor    *tools.Executor
	Checkpoints Checkpointer
	Retriever   retrieval.Retriever
	Confirmer   Confirmer
	Observer    Observer
	Logger      *zap.Logger
}

// Engine processes requests for one active conversation at a time.
type Engine struct {
	store       ConversationStore
	sender      Sender
	executor    *tools.Executor
	checkpoints Checkpointer
	retriever   retrieval.Retriever
	confirmer   Confirmer
	observer    Observer
	logger      *zap.Logger
	opts        Options

	conversationID string
}

// New creates an engine. Missing optional collaborators fall back to a
// retriever that finds nothing, a confirmer that declines everything and
// an observer that ignores events.
func New(deps Deps, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.RetrievalTopK < 0 {
		opts.RetrievalTopK = 0
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaults.MaxToolRounds
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}

	e := &Engine{
		store:       deps.Store,
		sender:      deps.Sender,
		executor:    deps.Executor,
		checkpoints: deps.Checkpoints,
		retriever:   deps.Retriever,
		confirmer:   deps.Confirmer,
		observer:    deps.Observer,
		logger:      deps.Logger,
		opts:        opts,
	}
	if e.retriever == nil {
		e.retriever = retrieval.Nop{}
	}
	if e.confirmer == nil {
		e.confirmer = declineAll{}
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("engine")
	return e
}

// ConversationID returns the active conversation, empty before the first
// request.
func (e *Engine) ConversationID() string {
	return e.conversationID
}

// SetConversation makes id the active conversation after checking that it
// exists.
func (e *Engine) SetConversation(ctx context.Context, id string) error {
	if _, err := e.store.GetConversation(ctx, id); err != nil {
		return err
	}
	e.conversationID = id
	return nil
}

// ResetConversation clears the active conversation. The next request
// starts a new one.
func (e *Engine) ResetConversation() {
	e.conversationID = ""
}

// RequestOptions carries per-request settings.
type RequestOptions struct {
	// Mode is the permission mode for every write in this request.
	Mode permission.Mode
	// OnChunk receives streamed text as it arrives.
	OnChunk model.StreamCallback
}

// WriteOutcome is the result of one attempted mutation.
type WriteOutcome struct {
	Path         string
	Kind         tools.ChangeKind
	CheckpointID string
	Success      bool
	Error        string
}

// Result is the outcome of a request.
type Result struct {
	ConversationID string
	Content        string
	Provider       string
	Model          string
	Usage          model.Usage
	// Rounds counts the tool rounds executed before the final response.
	Rounds int
	Writes []WriteOutcome
	// Planned lists changes that plan-only mode kept from running.
	Planned []tools.Change
}

// ProcessRequest appends message (if non-empty) to the active
// conversation, creating one when needed, and runs the tool loop until
// the model answers without tool calls. An empty message continues the
// active conversation.
func (e *Engine) ProcessRequest(ctx context.Context, message string, ro RequestOptions) (*Result, error) {
	mode, err := permission.ParseMode(string(ro.Mode))
	if err != nil {
		return nil, err
	}
	ro.Mode = mode

	convID, err := e.ensureConversation(ctx, message)
	if err != nil {
		return nil, err
	}

	res := &Result{ConversationID: convID}
	pending := message

	for {
		if pending != "" {
			if _, err := e.store.AddMessage(ctx, model.Message{
				ConversationID: convID,
				Role:           model.RoleUser,
				Content:        pending,
			}); err != nil {
				return res, err
			}
		}

		msgs, err := e.assembleContext(ctx, convID, pending)
		if err != nil {
			return res, err
		}
		pending = ""

		resp, err := e.sender.SendMessage(ctx, msgs, tools.Schemas(), model.SendOptions{
			MaxTokens: e.opts.MaxTokens,
			OnChunk:   ro.OnChunk,
		})
		if err != nil {
			return res, err
		}

		res.Usage = res.Usage.Add(resp.Usage)
		res.Provider = resp.Provider
		res.Model = resp.Model

		if _, err := e.store.AddMessage(ctx, model.Message{
			ConversationID: convID,
			Role:           model.RoleAssistant,
			Content:        resp.Content,
			Provider:       resp.Provider,
			Model:          resp.Model,
			TokenCount:     resp.Usage.OutputTokens,
			Metadata:       model.Metadata{ToolCalls: resp.ToolCalls},
		}); err != nil {
			return res, err
		}

		if len(resp.ToolCalls) == 0 {
			res.Content = resp.Content
			return res, nil
		}

		if res.Rounds >= e.opts.MaxToolRounds {
			// Answer the outstanding calls so the log stays well formed.
			for _, call := range resp.ToolCalls {
				if err := e.appendToolResult(ctx, convID, call, "Error: "+ErrToolRoundLimit.Error()); err != nil {
					return res, err
				}
			}
			e.logger.Warn("tool round limit reached",
				zap.String("conversation", convID), zap.Int("rounds", res.Rounds))
			return res, fmt.Errorf("%w after %d rounds", ErrToolRoundLimit, res.Rounds)
		}

		results, err := e.executeRound(ctx, resp.ToolCalls, ro.Mode, res)
		if err != nil {
			return res, err
		}
		for i, call := range resp.ToolCalls {
			if err := e.appendToolResult(ctx, convID, call, results[i]); err != nil {
				return res, err
			}
		}
		res.Rounds++
	}
}

func (e *Engine) ensureConversation(ctx context.Context, message string) (string, error) {
	if e.conversationID != "" {
		return e.conversationID, nil
	}
	if message == "" {
		return "", ErrNoConversation
	}

	conv, err := e.store.CreateConversation(ctx, storage.GenerateConversationTitle(message))
	if err != nil {
		return "", err
	}
	e.conversationID = conv.ID
	e.logger.Debug("conversation created", zap.String("conversation", conv.ID), zap.String("title", conv.Title))
	return conv.ID, nil
}

func (e *Engine) appendToolResult(ctx context.Context, convID string, call model.ToolCall, content string) error {
	msg := model.ToolResultMessage(call, content)
	msg.ConversationID = convID
	_, err := e.store.AddMessage(ctx, msg)
	return err
}

type declineAll struct{}

func (declineAll) ConfirmWrite(context.Context, tools.Change) (bool, error) { return false, nil }
func (declineAll) ConfirmBatch(context.Context, []tools.Change) (BatchDecision, error) {
	return BatchCancel, nil
}
func (declineAll) ShowPlan(context.Context, []tools.Change) {}

type nopObserver struct{}

func (nopObserver) ToolStarted(model.ToolCall)          {}
func (nopObserver) ToolFinished(model.ToolCall, string) {}

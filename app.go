package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
	"go.uber.org/zap"

	"tcode/checkpoint"
	"tcode/config"
	"tcode/engine"
	"tcode/orchestrator"
	"tcode/permission"
	"tcode/provider"
	"tcode/retrieval"
	"tcode/storage"
	"tcode/tools"
	"tcode/ui"
)

// newBuilder resolves provider ids to backends. Tests replace it.
var newBuilder = func(cfg *config.Config) provider.Builder {
	return provider.NewBuilder(cfg)
}

// app holds everything a command needs. Commands that only read local
// state stop after openApp; ask and chat also call startEngine.
type app struct {
	cfg         *config.Config
	db          *storage.DB
	checkpoints *checkpoint.Manager
	logger      *zap.Logger

	orch     *orchestrator.Orchestrator
	engine   *engine.Engine
	prompter *ui.Prompter
	mode     *permission.State
	lock     *storage.ConversationLock

	in    io.Reader
	out   io.Writer
	width int
}

func openApp(in io.Reader, out io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	mode, err := permission.ParseMode(cfg.PermissionMode)
	if err != nil {
		return nil, fmt.Errorf("invalid permission_mode in config: %w", err)
	}

	logger := config.InitDebugLog(cfg.DataDir())

	db, err := storage.Open(cfg.DataDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &app{
		cfg:         cfg,
		db:          db,
		checkpoints: checkpoint.NewManager(db),
		logger:      logger,
		mode:        permission.NewState(mode),
		in:          in,
		out:         out,
		width:       terminalWidth(out),
	}, nil
}

// startOrchestrator initializes every ranked backend. Backends that fail
// to build or initialize are left out.
func (a *app) startOrchestrator(ctx context.Context) error {
	policy := orchestrator.RetryPolicy{
		MaxRetries: a.cfg.Orchestrator.MaxRetries,
		BaseDelay:  a.cfg.RetryBaseDelay(),
		MaxDelay:   a.cfg.RetryMaxDelay(),
	}
	a.orch = orchestrator.New(policy, a.db, a.logger)

	return a.orch.Initialize(ctx, a.cfg.RankedProviders(), newBuilder(a.cfg))
}

// startEngine wires the request loop rooted at dir.
func (a *app) startEngine(ctx context.Context, dir string) error {
	if err := a.startOrchestrator(ctx); err != nil {
		return err
	}

	executor, err := tools.NewExecutor(dir)
	if err != nil {
		return err
	}

	a.prompter = ui.NewPrompter(a.in, a.out, a.width)
	a.engine = engine.New(engine.Deps{
		Store:       a.db,
		Sender:      a.orch,
		Executor:    executor,
		Checkpoints: a.checkpoints,
		Retriever:   retrieval.NewFileIndex(executor.Root, a.logger),
		Confirmer:   a.prompter,
		Observer:    ui.NewToolPrinter(a.out, a.width),
		Logger:      a.logger,
	}, engine.Options{
		HistoryLimit:  a.cfg.Engine.HistoryLimit,
		RetrievalTopK: a.cfg.Engine.RetrievalTopK,
		MaxToolRounds: a.cfg.Engine.MaxToolRounds,
		MaxTokens:     a.cfg.Engine.MaxTokens,
		SystemPrompt:  a.cfg.DefaultSystemPrompt,
	})
	return nil
}

// resume makes id the active conversation and locks it for this process.
func (a *app) resume(ctx context.Context, id string) error {
	if err := a.engine.SetConversation(ctx, id); err != nil {
		return err
	}
	return a.lockActive()
}

// lockActive locks the active conversation once there is one.
func (a *app) lockActive() error {
	id := a.engine.ConversationID()
	if a.lock != nil || id == "" {
		return nil
	}
	lock, err := storage.LockConversation(a.cfg.DataDir(), id)
	if err != nil {
		return err
	}
	a.lock = lock
	return nil
}

func (a *app) Close() {
	if a.orch != nil {
		a.orch.Stop()
	}
	if err := a.lock.Unlock(); err != nil {
		a.logger.Warn("failed to release conversation lock", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// resolveMode returns the mode named by flag, or the configured mode when
// flag is empty.
func (a *app) resolveMode(flag string) (permission.Mode, error) {
	if flag == "" {
		return a.mode.Mode(), nil
	}
	m, err := permission.ParseMode(flag)
	if err != nil {
		return "", err
	}
	a.mode.Set(m)
	return m, nil
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok {
		return 0
	}
	w, _, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}
	return w
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcode/config"
	"tcode/model"
	"tcode/permission"
	"tcode/provider"
	"tcode/provider/testutil"
	"tcode/storage"
)

// testEnv points config and data at temp directories and replaces the
// backend builder so only "anthropic" is available, served by mock.
func testEnv(t *testing.T, mock *testutil.MockProvider) string {
	t.Helper()

	home := t.TempDir()
	dataDir := filepath.Join(home, "data")
	t.Setenv("HOME", home)
	t.Setenv("TCODE_DATA_DIR", dataDir)
	t.Setenv("TCODE_DEBUG", "")

	orig := newBuilder
	newBuilder = func(cfg *config.Config) provider.Builder {
		return func(id string) (model.Provider, error) {
			if id == "anthropic" && mock != nil {
				return mock, nil
			}
			return nil, fmt.Errorf("provider %s: not available in tests", id)
		}
	}
	t.Cleanup(func() { newBuilder = orig })

	return dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tcode dev")
}

func TestModeCommands(t *testing.T) {
	dataDir := testEnv(t, nil)

	out, err := run(t, "mode")
	require.NoError(t, err)
	assert.Contains(t, out, "default")

	out, err = run(t, "mode", "set", "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "plan-only")

	cfg, err := config.LoadFromDataDir(dataDir)
	require.NoError(t, err)
	assert.Equal(t, "plan-only", cfg.PermissionMode)

	out, err = run(t, "mode", "cycle")
	require.NoError(t, err)
	assert.Contains(t, out, "default")

	_, err = run(t, "mode", "set", "yolo")
	assert.Error(t, err)
}

func TestInvalidConfiguredModeIsFatal(t *testing.T) {
	mock := testutil.NewMockProvider("anthropic", "claude-test")
	dataDir := testEnv(t, mock)
	require.NoError(t, os.MkdirAll(dataDir, 0700))
	require.NoError(t, config.SavePermissionMode(dataDir, "yolo"))

	_, err := run(t, "ask", "--dir", t.TempDir(), "hello")
	require.ErrorIs(t, err, permission.ErrInvalidMode)
	assert.Contains(t, err.Error(), "permission_mode")
	assert.Equal(t, 0, mock.SendCalls())

	_, err = run(t, "mode")
	require.ErrorIs(t, err, permission.ErrInvalidMode)

	out, err := run(t, "mode", "set", "plan-only")
	require.NoError(t, err)
	assert.Contains(t, out, "plan-only")

	_, err = run(t, "ask", "--dir", t.TempDir(), "hello")
	require.NoError(t, err)
}

func TestModeHelpListsModes(t *testing.T) {
	help := newModeCmd().Long
	for _, m := range permission.Modes() {
		assert.Contains(t, help, string(m))
		assert.Contains(t, help, m.Description())
	}
}

func TestAskPrintsAnswer(t *testing.T) {
	mock := testutil.NewMockProvider("anthropic", "claude-test")
	testEnv(t, mock)

	out, err := run(t, "ask", "--raw", "--dir", t.TempDir(), "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "Mock response")
	assert.Contains(t, out, "anthropic/claude-test")
	assert.Equal(t, 1, mock.SendCalls())

	msgs := mock.LastMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "hello there", msgs[len(msgs)-1].Content)

	out, err = run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "hello there")
}

func TestAskNoProviders(t *testing.T) {
	testEnv(t, nil)

	_, err := run(t, "ask", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model providers available")
}

func TestAskAutoEditWritesAndReverts(t *testing.T) {
	mock := testutil.NewMockProvider("anthropic", "claude-test")
	mock.SendFunc = testutil.ScriptedSend(
		testutil.ToolCallResponse("anthropic", "claude-test", testutil.WriteCall("call_1", "notes.txt", "hi\n")),
		testutil.TextResponse("anthropic", "claude-test", "Wrote notes.txt"),
	)
	dataDir := testEnv(t, mock)
	project := t.TempDir()

	out, err := run(t, "ask", "--mode", "auto-edit", "--dir", project, "write a note")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote notes.txt")

	target := filepath.Join(project, "notes.txt")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))

	db, err := storage.Open(dataDir)
	require.NoError(t, err)
	cps, err := db.ListCheckpoints(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, cps, 1)
	assert.False(t, cps[0].Existed)

	out, err = run(t, "checkpoints", "list")
	require.NoError(t, err)
	assert.Contains(t, out, cps[0].ID)

	_, err = run(t, "checkpoints", "revert", cps[0].ID)
	require.NoError(t, err)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestAskPlanOnlyLeavesFilesAlone(t *testing.T) {
	mock := testutil.NewMockProvider("anthropic", "claude-test")
	mock.SendFunc = testutil.ScriptedSend(
		testutil.ToolCallResponse("anthropic", "claude-test", testutil.WriteCall("call_1", "plan.txt", "x")),
		testutil.TextResponse("anthropic", "claude-test", "Planned"),
	)
	testEnv(t, mock)
	project := t.TempDir()

	out, err := run(t, "ask", "--mode", "plan-only", "--dir", project, "plan it")
	require.NoError(t, err)
	assert.Contains(t, out, "plan.txt")
	assert.Contains(t, out, "1 change(s) planned")

	_, err = os.Stat(filepath.Join(project, "plan.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestProvidersCmd(t *testing.T) {
	mock := testutil.NewMockProvider("anthropic", "claude-test")
	testEnv(t, mock)

	out, err := run(t, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "*anthropic")
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "openai unavailable")
	assert.Equal(t, 1, mock.HealthCalls())
}

func TestHistoryUnknownConversation(t *testing.T) {
	testEnv(t, nil)

	_, err := run(t, "history", "does-not-exist")
	require.ErrorIs(t, err, storage.ErrConversationNotFound)
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("word ", 50) + "needle " + strings.Repeat("tail ", 50)

	got := excerpt(long, "needle", 60)
	assert.Contains(t, got, "needle")
	assert.True(t, strings.HasPrefix(got, "…"))

	assert.Equal(t, "a b c", excerpt("a\n b\t c", "", 60))
}

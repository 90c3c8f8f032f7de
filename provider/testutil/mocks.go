package testutil

import (
	"context"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"tcode/model"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	InitFunc   func(ctx context.Context) error
	SendFunc   func(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error)
	HealthFunc func(ctx context.Context) bool

	mu           sync.Mutex
	name         string
	currentModel string
	sendCalls    int
	healthCalls  int
	lastMessages []model.Message
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(name, modelName string) *MockProvider {
	mock := &MockProvider{
		name:         name,
		currentModel: modelName,
	}
	mock.InitFunc = func(ctx context.Context) error { return nil }
	mock.SendFunc = mock.defaultSend
	mock.HealthFunc = func(ctx context.Context) bool { return true }
	return mock
}

func (m *MockProvider) defaultSend(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	return TextResponse(m.name, m.currentModel, "Mock response"), nil
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Initialize(ctx context.Context) error {
	return m.InitFunc(ctx)
}

func (m *MockProvider) Send(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, opts model.SendOptions) (*model.Response, error) {
	m.mu.Lock()
	m.sendCalls++
	m.lastMessages = append([]model.Message(nil), messages...)
	m.mu.Unlock()

	return m.SendFunc(ctx, messages, tools, opts)
}

func (m *MockProvider) HealthCheck(ctx context.Context) bool {
	m.mu.Lock()
	m.healthCalls++
	m.mu.Unlock()

	return m.HealthFunc(ctx)
}

func (m *MockProvider) Capabilities() model.Capabilities {
	return model.Capabilities{
		Streaming:       false,
		MaxTokens:       4096,
		SupportedModels: []string{m.currentModel},
		Features:        []string{"tools"},
	}
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

// SendCalls returns how many times Send was called.
func (m *MockProvider) SendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCalls
}

// HealthCalls returns how many times HealthCheck was called.
func (m *MockProvider) HealthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthCalls
}

// LastMessages returns the messages passed to the most recent Send.
func (m *MockProvider) LastMessages() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

package provider

import (
	"strings"
	"testing"

	"tcode/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		wantName    string
	}{
		{
			name: "ollama provider with defaults",
			config: Config{
				Type: ProviderTypeOllama,
			},
			wantName: "ollama",
		},
		{
			name: "ollama provider with custom config",
			config: Config{
				Type:    ProviderTypeOllama,
				Name:    "local",
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
			wantName: "local",
		},
		{
			name: "openai provider",
			config: Config{
				Type:    ProviderTypeOpenAI,
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
				APIKey:  "test-key",
			},
			wantName: "openai",
		},
		{
			name: "anthropic provider",
			config: Config{
				Type:    ProviderTypeAnthropic,
				BaseURL: "https://api.anthropic.com",
				Model:   "claude-sonnet-4-5-20250929",
				APIKey:  "test-key",
			},
			wantName: "anthropic",
		},
		{
			name: "gemini provider",
			config: Config{
				Type:   ProviderTypeGemini,
				Model:  "gemini-2.5-flash",
				APIKey: "test-key",
			},
			wantName: "gemini",
		},
		{
			name: "anthropic provider without key",
			config: Config{
				Type: ProviderTypeAnthropic,
			},
			expectError: true,
		},
		{
			name: "gemini provider without key",
			config: Config{
				Type: ProviderTypeGemini,
			},
			expectError: true,
		},
		{
			name: "unknown provider type",
			config: Config{
				Type:    ProviderType("unknown"),
				BaseURL: "http://localhost",
				Model:   "test",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if p != nil {
					t.Error("expected nil provider on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
		})
	}
}

func TestMapProviderIDToType(t *testing.T) {
	tests := []struct {
		id   string
		want ProviderType
	}{
		{"ollama", ProviderTypeOllama},
		{"openrouter", ProviderTypeOpenRouter},
		{"openai", ProviderTypeOpenAI},
		{"anthropic", ProviderTypeAnthropic},
		{"gemini", ProviderTypeGemini},
		{"google", ProviderTypeGemini},
		{"mystery", ProviderType("mystery")},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := MapProviderIDToType(tt.id); got != tt.want {
				t.Errorf("MapProviderIDToType(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestNewBuilder(t *testing.T) {
	cfg := &config.Config{
		OllamaHost:   "http://ollama.internal:11434",
		DefaultModel: "qwen2.5-coder:7b",
		Providers: []config.ProviderConfig{
			{ID: "ollama", Name: "Ollama", Enabled: true},
			{ID: "anthropic", Name: "Anthropic", Enabled: true},
		},
		CredentialStore: config.NewCredentialStore(),
	}
	t.Setenv("ANTHROPIC_API_KEY", "")

	build := NewBuilder(cfg)

	t.Run("ollama falls back to the ollama section", func(t *testing.T) {
		p, err := build("ollama")
		if err != nil {
			t.Fatalf("build(ollama) failed: %v", err)
		}
		if p.GetModel() != "qwen2.5-coder:7b" {
			t.Errorf("GetModel() = %q, want qwen2.5-coder:7b", p.GetModel())
		}
		op, ok := p.(*OllamaProvider)
		if !ok {
			t.Fatalf("expected *OllamaProvider, got %T", p)
		}
		if op.client.BaseURL() != "http://ollama.internal:11434" {
			t.Errorf("BaseURL() = %q", op.client.BaseURL())
		}
	})

	t.Run("missing key names the provider", func(t *testing.T) {
		_, err := build("anthropic")
		if err == nil {
			t.Fatal("expected error for anthropic without key")
		}
		if !strings.Contains(err.Error(), "provider anthropic") {
			t.Errorf("error %q does not name the provider", err)
		}
	})

	t.Run("key from the environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")
		p, err := build("anthropic")
		if err != nil {
			t.Fatalf("build(anthropic) failed: %v", err)
		}
		if p.Name() != "anthropic" {
			t.Errorf("Name() = %q, want anthropic", p.Name())
		}
	})
}

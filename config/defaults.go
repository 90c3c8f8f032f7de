package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/tcode",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Ollama: OllamaConfig{
			Host:         "http://localhost:11434",
			DefaultModel: "llama3.1:latest",
		},
		ProviderOrder: []string{"anthropic", "openai", "ollama"},
		Providers: []ProviderConfig{
			{ID: "anthropic", Name: "Anthropic", Enabled: true, BaseURL: getProviderDefaultBaseURL("anthropic")},
			{ID: "openai", Name: "OpenAI", Enabled: true, BaseURL: getProviderDefaultBaseURL("openai")},
			{ID: "ollama", Name: "Ollama", Enabled: true, BaseURL: "http://localhost:11434"},
		},
		Orchestrator: OrchestratorConfig{
			MaxRetries:          3,
			BaseDelayMS:         1000,
			MaxDelayMS:          30000,
			HealthCheckInterval: "60s",
		},
		Engine: EngineConfig{
			HistoryLimit:  50,
			RetrievalTopK: 5,
			MaxToolRounds: 25,
			MaxTokens:     4096,
		},
		PermissionMode: "default",
	}
}

func GenerateSystemConfigTemplate() string {
	return `# tcode System Configuration
# Location: ~/.config/tcode/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations, checkpoints and user config are stored
data_directory = "~/.local/share/tcode"
`
}

func GenerateUserConfigTemplate() string {
	return `# tcode User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Backends in preference order. The first available one is the primary;
# the others are used when it fails.
provider_order = ["anthropic", "openai", "ollama"]

# Permission mode for file changes: "default", "auto-edit" or "plan-only"
permission_mode = "default"

# Default system prompt prepended to every request (optional)
default_system_prompt = ""

[ollama]
# Ollama server URL
host = "http://localhost:11434"

# Default model for the Ollama backend
default_model = "llama3.1:latest"

[orchestrator]
# Attempts per backend before failing over
max_retries = 3

# Exponential backoff between attempts: base_delay_ms * 2^attempt, capped
base_delay_ms = 1000
max_delay_ms = 30000

# Background health checks ("0" disables)
health_check_interval = "60s"

[engine]
# Messages of history sent with each request
history_limit = 50

# Code snippets retrieved per request
retrieval_top_k = 5

# Model round trips allowed per request before giving up
max_tool_rounds = 25

max_tokens = 4096

# API keys live in credentials.toml next to this file, or in the
# ANTHROPIC_API_KEY / OPENAI_API_KEY / OPENROUTER_API_KEY / GEMINI_API_KEY
# environment variables.

[[providers]]
id = "anthropic"
name = "Anthropic"
enabled = true
base_url = "https://api.anthropic.com"

[[providers]]
id = "openai"
name = "OpenAI"
enabled = true
base_url = "https://api.openai.com/v1"

[[providers]]
id = "ollama"
name = "Ollama"
enabled = true
base_url = "http://localhost:11434"

# [[providers]]
# id = "openrouter"
# name = "OpenRouter"
# enabled = true
# base_url = "https://openrouter.ai/api/v1"
# model = "qwen/qwen3-coder:free"

# [[providers]]
# id = "gemini"
# name = "Gemini"
# enabled = true
# model = "gemini-2.5-flash"
`
}

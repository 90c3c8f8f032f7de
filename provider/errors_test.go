package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"tcode/model"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantOK        bool
		wantStatus    int
		wantRetryable bool
	}{
		{
			name:          "ollama status error",
			err:           api.StatusError{StatusCode: 401, Status: "401 Unauthorized", ErrorMessage: "unauthorized"},
			wantOK:        true,
			wantStatus:    401,
			wantRetryable: false,
		},
		{
			name:          "wrapped ollama overload",
			err:           fmt.Errorf("chat failed: %w", api.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}),
			wantOK:        true,
			wantStatus:    503,
			wantRetryable: true,
		},
		{
			name:          "gemini api error",
			err:           genai.APIError{Code: 429, Message: "quota exhausted", Status: "RESOURCE_EXHAUSTED"},
			wantOK:        true,
			wantStatus:    429,
			wantRetryable: true,
		},
		{
			name:          "provider error passes through",
			err:           model.NewProviderError(400, "bad request", "invalid_request_error"),
			wantOK:        true,
			wantStatus:    400,
			wantRetryable: false,
		},
		{
			name:   "transport error",
			err:    errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"),
			wantOK: false,
		},
		{
			name:   "cancelled context",
			err:    context.Canceled,
			wantOK: false,
		},
		{
			name:   "nil",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe, ok := classifyError(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("classifyError() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.wantStatus)
			}
			if pe.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", pe.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestFailure(t *testing.T) {
	resp, err := failure("ollama", "llama3.1", api.StatusError{StatusCode: 429, ErrorMessage: "too many requests"})
	if err != nil {
		t.Fatalf("status errors should not be returned as errors: %v", err)
	}
	if resp.Success {
		t.Error("expected Success=false")
	}
	if resp.Error == nil || resp.Error.StatusCode != 429 {
		t.Fatalf("Error = %+v, want status 429", resp.Error)
	}
	if resp.Error.Message != "too many requests" {
		t.Errorf("Message = %q", resp.Error.Message)
	}
	if resp.Provider != "ollama" || resp.Model != "llama3.1" {
		t.Errorf("Provider/Model = %q/%q", resp.Provider, resp.Model)
	}

	transport := errors.New("connection reset by peer")
	resp, err = failure("ollama", "llama3.1", transport)
	if resp != nil {
		t.Errorf("expected nil response for transport error, got %+v", resp)
	}
	if !errors.Is(err, transport) {
		t.Errorf("err = %v, want %v", err, transport)
	}
}

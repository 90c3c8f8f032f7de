package provider

import (
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"tcode/model"
)

// classifyError converts a vendor SDK error into a ProviderError when the
// error carries an HTTP status. Errors without one (DNS failures, refused
// connections, cancelled contexts) are returned unchanged as transport
// errors.
func classifyError(err error) (*model.ProviderError, bool) {
	if err == nil {
		return nil, false
	}

	var pe *model.ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return model.NewProviderError(anthropicErr.StatusCode, anthropicErr.Error(), statusText(anthropicErr.StatusCode)), true
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		code := openaiErr.Code
		if code == "" {
			code = statusText(openaiErr.StatusCode)
		}
		return model.NewProviderError(openaiErr.StatusCode, openaiErr.Error(), code), true
	}

	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) {
		msg := ollamaErr.ErrorMessage
		if msg == "" {
			msg = ollamaErr.Status
		}
		return model.NewProviderError(ollamaErr.StatusCode, msg, statusText(ollamaErr.StatusCode)), true
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return model.NewProviderError(geminiErr.Code, geminiErr.Message, geminiErr.Status), true
	}
	var geminiErrPtr *genai.APIError
	if errors.As(err, &geminiErrPtr) {
		return model.NewProviderError(geminiErrPtr.Code, geminiErrPtr.Message, geminiErrPtr.Status), true
	}

	return nil, false
}

// failure turns err into the (Response, error) pair returned by Send:
// status-bearing errors become an unsuccessful Response, the rest are
// returned as transport errors.
func failure(name, modelName string, err error) (*model.Response, error) {
	if pe, ok := classifyError(err); ok {
		return model.FailedResponse(name, modelName, pe), nil
	}
	return nil, err
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return ""
}

package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"statement-backend/internal/llm"
)

const (
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-2.5-flash"
)

// Client implements llm.Client against the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client

	// baseURL is overridable in tests.
	baseURL string
}

// NewClient constructs a Gemini client. The request timeout defaults to 60s
// and can be overridden with LLM_TIMEOUT_SECONDS.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required: %w", llm.ErrNotConfigured)
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: apiBaseURL,
	}, nil
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.model }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// GenerateAnalysis sends the prompt plus document parts and returns the raw
// model text. Failures are classified into llm.Error kinds.
func (c *Client) GenerateAnalysis(ctx context.Context, req llm.Request) (string, error) {
	parts := make([]part, 0, len(req.Documents)+1)
	parts = append(parts, part{Text: req.Prompt})
	for _, doc := range req.Documents {
		if len(doc.Data) > 0 {
			parts = append(parts, part{InlineData: &inlineData{
				MimeType: doc.MimeType,
				Data:     base64.StdEncoding.EncodeToString(doc.Data),
			}})
			continue
		}
		parts = append(parts, part{Text: fmt.Sprintf("Document: %s\n\n%s", doc.Name, doc.Text)})
	}

	payload, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", &llm.Error{Kind: llm.KindTimeout, Message: "gemini request timeout", Err: err}
		}
		return "", &llm.Error{Kind: llm.KindServiceUnavailable, Message: "gemini request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &llm.Error{Kind: llm.KindBadResponse, Message: "read gemini response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &llm.Error{Kind: llm.KindBadResponse, Message: "gemini response parse", Err: err}
	}
	if parsed.Error != nil {
		return "", classifyStatus(parsed.Error.Code, body)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &llm.Error{Kind: llm.KindBadResponse, Message: "gemini response missing candidates"}
	}

	logUsage(c.model, parsed.UsageMetadata)

	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &llm.Error{Kind: llm.KindBadResponse, Message: "gemini response empty content"}
	}
	return text, nil
}

func classifyStatus(status int, body []byte) *llm.Error {
	msg := apiErrorMessage(body)
	switch {
	case status == http.StatusTooManyRequests:
		return &llm.Error{Kind: llm.KindRateLimited, Status: status, Message: msg}
	case status == http.StatusUnauthorized:
		return &llm.Error{Kind: llm.KindUnauthorized, Status: status, Message: msg}
	case status == http.StatusForbidden:
		return &llm.Error{Kind: llm.KindForbidden, Status: status, Message: msg}
	case status >= 500:
		return &llm.Error{Kind: llm.KindServiceUnavailable, Status: status, Message: msg}
	default:
		return &llm.Error{Kind: llm.KindBadResponse, Status: status, Message: msg}
	}
}

func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		if parsed.Error.Status != "" {
			return fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Status)
		}
		return parsed.Error.Message
	}
	const maxLen = 200
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func logUsage(model string, usage *struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}) {
	if usage == nil {
		log.Printf("llm response model=%s", model)
		return
	}
	log.Printf("llm response model=%s prompt_tokens=%d candidate_tokens=%d total_tokens=%d",
		model, usage.PromptTokenCount, usage.CandidatesTokenCount, usage.TotalTokenCount)
}

var _ llm.Client = (*Client)(nil)

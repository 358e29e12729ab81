// Package runner talks to the code-execution router, which forwards
// {language, code} to a per-language sandbox and returns {output, error}.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"competition-grader/internal/domain"
)

// Languages the router knows how to dispatch.
var supported = map[string]string{
	"python":     "python",
	"py":         "python",
	"cpp":        "cpp",
	"c++":        "cpp",
	"java":       "java",
	"javascript": "javascript",
	"js":         "javascript",
	"c":          "c",
}

// maxResponse caps how much sandbox output is read back.
const maxResponse = 1 << 20

// Client posts code to the router's /run endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type runRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type runResponse struct {
	Output string `json:"output"`
	Error  string `json:"error"`
}

// Run executes code. A program that fails to compile or run is not an
// error: its diagnostics come back in ExecutionOutput.Error.
func (c *Client) Run(ctx context.Context, language, code string) (domain.ExecutionOutput, error) {
	lang, ok := supported[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return domain.ExecutionOutput{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, language)
	}

	body, err := json.Marshal(runRequest{Language: lang, Code: code})
	if err != nil {
		return domain.ExecutionOutput{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ExecutionOutput{}, fmt.Errorf("run code: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	var out runResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponse)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return domain.ExecutionOutput{}, fmt.Errorf("decode run response: %w: %w", domain.ErrStoreUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return domain.ExecutionOutput{}, fmt.Errorf("%w: %q: %s", domain.ErrUnsupportedLanguage, lang, out.Error)
	case resp.StatusCode != http.StatusOK:
		return domain.ExecutionOutput{}, fmt.Errorf("run code: %w: router returned %d: %s", domain.ErrStoreUnavailable, resp.StatusCode, out.Error)
	}
	return domain.ExecutionOutput{Language: lang, Output: out.Output, Error: out.Error}, nil
}

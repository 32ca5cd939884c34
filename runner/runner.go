package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultURL     = "https://emkc.org/api/v2/piston/execute"
	defaultTimeout = 5 * time.Second
)

// Result is the outcome of a code execution.
type Result struct {
	Stdout  string        `json:"stdout"`
	Stderr  string        `json:"stderr"`
	Elapsed time.Duration `json:"elapsed"`
}

// Runner executes code in a sandbox. The sandbox itself is an external
// collaborator; the engine only hands over (source, language, stdin).
type Runner interface {
	Run(ctx context.Context, source, language, stdin string) (*Result, error)
}

// PistonRunner executes code against a piston-compatible HTTP API.
type PistonRunner struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewPistonRunner(url string, timeout time.Duration) *PistonRunner {
	if url == "" {
		url = defaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &PistonRunner{url: url, timeout: timeout, client: &http.Client{}}
}

// editor language identifiers known to the execution API; unknown ones are
// passed through unchanged
var languageAliases = map[string]string{
	"javascript": "javascript",
	"python":     "python",
	"java":       "java",
	"cpp":        "cpp",
	"c":          "c",
	"go":         "go",
	"rust":       "rust",
	"typescript": "typescript",
}

type pistonRequest struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Files    []pistonFile `json:"files"`
	Stdin    string       `json:"stdin,omitempty"`
}

type pistonFile struct {
	Content string `json:"content"`
}

type pistonResponse struct {
	Run struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	} `json:"run"`
	Message string `json:"message"`
}

func (r *PistonRunner) Run(ctx context.Context, source, language, stdin string) (*Result, error) {
	lang := language
	if alias, ok := languageAliases[language]; ok {
		lang = alias
	}
	body, err := json.Marshal(pistonRequest{
		Language: lang,
		Version:  "*",
		Files:    []pistonFile{{Content: source}},
		Stdin:    stdin,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := pistonResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if out.Message != "" {
			return nil, fmt.Errorf("execution failed: %s", out.Message)
		}
		return nil, fmt.Errorf("execution failed: status %d", resp.StatusCode)
	}
	return &Result{
		Stdout:  out.Run.Stdout,
		Stderr:  out.Run.Stderr,
		Elapsed: time.Since(start),
	}, nil
}

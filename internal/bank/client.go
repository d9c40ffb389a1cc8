// Package bank is the HTTP client for the external question repository.
// It implements quiz.QuestionSource and quiz.Catalog.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quizbot/internal/quiz"
	logx "quizbot/pkg/logx"
)

// Config points the client at the repository service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("question bank base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With(logx.String("comp", "bank")),
	}, nil
}

// queryRequest is the wire form of a question query.
type queryRequest struct {
	SubjectIDs   []string `json:"subject_ids,omitempty"`
	ChapterIDs   []string `json:"chapter_ids,omitempty"`
	VerifiedOnly bool     `json:"verified_only,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

type queryResponse struct {
	Questions []quiz.Question `json:"questions"`
}

type subjectsResponse struct {
	Subjects []quiz.Subject `json:"subjects"`
}

// Query fetches questions matching the filter. The repository imposes no
// ordering on the result.
func (c *Client) Query(ctx context.Context, f quiz.QueryFilter) ([]quiz.Question, error) {
	body := queryRequest{
		SubjectIDs:   f.SubjectIDs,
		ChapterIDs:   f.ChapterIDs,
		VerifiedOnly: f.VerifiedOnly,
		Limit:        f.Limit,
	}
	var out queryResponse
	if err := c.do(ctx, http.MethodPost, "/questions/query", body, &out); err != nil {
		return nil, fmt.Errorf("question query: %w", err)
	}
	c.log.Debug("question query",
		logx.Int("limit", f.Limit),
		logx.Int("returned", len(out.Questions)))
	return out.Questions, nil
}

// Subjects returns the subject/chapter catalog.
func (c *Client) Subjects(ctx context.Context) ([]quiz.Subject, error) {
	var out subjectsResponse
	if err := c.do(ctx, http.MethodGet, "/subjects", nil, &out); err != nil {
		return nil, fmt.Errorf("subject catalog: %w", err)
	}
	return out.Subjects, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: http %d: %s", method, path, resp.StatusCode, truncateBody(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 512
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

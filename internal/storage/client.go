// Package storage talks to the file utility service that moves uploads from
// temporary to permanent storage when a post is published.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/church-cms/internal"
	"github.com/go-resty/resty/v2"
)

// TempMarker identifies an upload that has not been promoted yet.
const TempMarker = "/temp/"

// File is one attachment of a post.
type File struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
}

// Promoted is the result of moving a post's files.
type Promoted struct {
	Files   []File
	Content string
}

// Promoter moves temporary files to permanent storage.
type Promoter interface {
	// PromoteFiles moves files and every temporary URL referenced in content,
	// returning both with URLs rewritten.
	PromoteFiles(ctx context.Context, files []File, content string) (*Promoted, error)
	// PromoteFile moves a single reference such as a thumbnail.
	PromoteFile(ctx context.Context, url string) (string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Bucket  string
	Timeout time.Duration
}

type promoteRequest struct {
	URLs   []string `json:"urls"`
	Bucket string   `json:"bucket,omitempty"`
}

type promoteResponse struct {
	Moved map[string]string `json:"moved"`
	Error string            `json:"error,omitempty"`
}

type Client struct {
	http   *resty.Client
	bucket string
	logger *slog.Logger
}

// NewPromoter returns a resty-backed client, or a pass-through promoter when
// no file service is configured.
func NewPromoter(cfg internal.StorageConfig, logger *slog.Logger) Promoter {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		logger.Warn("storage base url not configured, temporary files will not be promoted")
		return NoopPromoter{}
	}
	return NewClient(Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Bucket:  cfg.Bucket,
		Timeout: cfg.Timeout,
	}, logger)
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		client.SetHeader("X-API-Key", config.APIKey)
	}

	return &Client{
		http:   client,
		bucket: config.Bucket,
		logger: logger,
	}
}

func (c *Client) PromoteFiles(ctx context.Context, files []File, content string) (*Promoted, error) {
	urls := TempURLs(files, content)
	if len(urls) == 0 {
		return &Promoted{Files: files, Content: content}, nil
	}

	moved, err := c.promote(ctx, urls)
	if err != nil {
		return nil, err
	}
	return Rewrite(files, content, moved), nil
}

func (c *Client) PromoteFile(ctx context.Context, url string) (string, error) {
	if !IsTemporary(url) {
		return url, nil
	}
	moved, err := c.promote(ctx, []string{url})
	if err != nil {
		return "", err
	}
	if dst, ok := moved[url]; ok {
		return dst, nil
	}
	return url, nil
}

func (c *Client) promote(ctx context.Context, urls []string) (map[string]string, error) {
	c.logger.Info("promoting temporary files", "count", len(urls))

	var result promoteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(promoteRequest{URLs: urls, Bucket: c.bucket}).
		SetResult(&result).
		SetError(&result).
		Post("/files/promote")
	if err != nil {
		c.logger.Error("file service call failed", "error", err)
		return nil, internal.NewExternalError("file promotion failed", internal.ErrCodeFilePromotion, err)
	}
	if resp.IsError() {
		c.logger.Error("file service returned error",
			"status_code", resp.StatusCode(),
			"message", result.Error)
		return nil, internal.NewExternalError("file promotion failed", internal.ErrCodeFilePromotion,
			fmt.Errorf("status %d: %s", resp.StatusCode(), result.Error))
	}
	if result.Moved == nil {
		result.Moved = map[string]string{}
	}
	return result.Moved, nil
}

// NoopPromoter leaves every reference where it is.
type NoopPromoter struct{}

func (NoopPromoter) PromoteFiles(ctx context.Context, files []File, content string) (*Promoted, error) {
	return &Promoted{Files: files, Content: content}, nil
}

func (NoopPromoter) PromoteFile(ctx context.Context, url string) (string, error) {
	return url, nil
}

var urlPattern = regexp.MustCompile(`(?:https?://[^\s"'<>()]+|/[^\s"'<>()]*)` + regexp.QuoteMeta(TempMarker) + `[^\s"'<>()]+`)

func IsTemporary(url string) bool {
	return strings.Contains(url, TempMarker)
}

// TempURLs collects the distinct temporary URLs of files and content in
// order of first appearance.
func TempURLs(files []File, content string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, f := range files {
		if IsTemporary(f.URL) {
			add(f.URL)
		}
	}
	for _, u := range urlPattern.FindAllString(content, -1) {
		add(u)
	}
	return out
}

// Rewrite replaces every moved URL in files and content.
func Rewrite(files []File, content string, moved map[string]string) *Promoted {
	out := make([]File, len(files))
	for i, f := range files {
		if dst, ok := moved[f.URL]; ok {
			f.URL = dst
		}
		out[i] = f
	}

	// longest source first so a URL never loses to its own prefix
	srcs := make([]string, 0, len(moved))
	for src := range moved {
		srcs = append(srcs, src)
	}
	sort.Slice(srcs, func(i, j int) bool {
		if len(srcs[i]) != len(srcs[j]) {
			return len(srcs[i]) > len(srcs[j])
		}
		return srcs[i] < srcs[j]
	})
	pairs := make([]string, 0, len(moved)*2)
	for _, src := range srcs {
		pairs = append(pairs, src, moved[src])
	}
	if len(pairs) > 0 {
		content = strings.NewReplacer(pairs...).Replace(content)
	}
	return &Promoted{Files: out, Content: content}
}

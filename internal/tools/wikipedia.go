package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/redis/go-redis/v9"

	"github.com/agente-films/moviepitch/internal/telemetry"
)

const (
	defaultWikiBaseURL = "https://en.wikipedia.org"
	maxExtractChars    = 1500
)

// Wikipedia looks up topic summaries for the researcher step. Results are
// cached in redis when a client is wired; without one every call goes to
// the network.
type Wikipedia struct {
	HTTP    *http.Client
	Rdb     *redis.Client
	TTL     time.Duration
	Logger  *log.Logger
	BaseURL string
}

// NewWikipedia builds a lookup client. rdb may be nil.
func NewWikipedia(rdb *redis.Client, ttl time.Duration, logger *log.Logger) *Wikipedia {
	return &Wikipedia{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Rdb:     rdb,
		TTL:     ttl,
		Logger:  logger,
		BaseURL: defaultWikiBaseURL,
	}
}

// Summary returns a short encyclopedic summary for the topic. The REST
// summary endpoint is tried first; on a miss the full article page is
// fetched and run through readability extraction.
func (w *Wikipedia) Summary(ctx context.Context, topic string) (string, error) {
	title := pageTitle(topic)
	if title == "" {
		return "", fmt.Errorf("empty topic")
	}

	cacheKey := "wiki:summary:" + strings.ToLower(title)
	if w.Rdb != nil {
		if cached, err := w.Rdb.Get(ctx, cacheKey).Result(); err == nil {
			telemetry.WikipediaLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}

	summary, err := w.restSummary(ctx, title)
	if err != nil {
		summary, err = w.articleExtract(ctx, title)
	}
	if err != nil {
		telemetry.WikipediaLookups.WithLabelValues("error").Inc()
		return "", err
	}
	telemetry.WikipediaLookups.WithLabelValues("miss").Inc()

	if w.Rdb != nil {
		if err := w.Rdb.Set(ctx, cacheKey, summary, w.TTL).Err(); err != nil {
			w.logf("cache summary: %v", err)
		}
	}
	return summary, nil
}

func (w *Wikipedia) restSummary(ctx context.Context, title string) (string, error) {
	u := w.BaseURL + "/api/rest_v1/page/summary/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia summary status %d", resp.StatusCode)
	}
	var out struct {
		Extract string `json:"extract"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Extract) == "" {
		return "", fmt.Errorf("empty extract for %q", title)
	}
	return clip(out.Extract), nil
}

func (w *Wikipedia) articleExtract(ctx context.Context, title string) (string, error) {
	u := w.BaseURL + "/wiki/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia article status %d", resp.StatusCode)
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("readability extract: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable text for %q", title)
	}
	return clip(text), nil
}

func (w *Wikipedia) logf(format string, args ...interface{}) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}

// pageTitle turns a free-form topic into a wikipedia page title.
func pageTitle(topic string) string {
	topic = strings.TrimSpace(topic)
	return strings.ReplaceAll(topic, " ", "_")
}

func clip(s string) string {
	if len(s) <= maxExtractChars {
		return s
	}
	return s[:maxExtractChars]
}

package canvas

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/courseforge/quizgen/internal/core/domain"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type moduleItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
	URL   string `json:"url"`
}

type pagePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// FetchModuleContent retrieves the page content of the given course modules
// and returns it as a fragment map keyed by module id. This is the
// extraction stage's sole network-bound call.
func (c *Client) FetchModuleContent(ctx context.Context, token, courseRef string, moduleIDs []int) (map[string][]domain.Fragment, error) {
	out := make(map[string][]domain.Fragment, len(moduleIDs))

	for _, moduleID := range moduleIDs {
		path := fmt.Sprintf("/api/v1/courses/%s/modules/%d/items?per_page=50",
			escape(courseRef), moduleID)

		var items []moduleItem
		if err := c.do(ctx, "fetch_module_items", "GET", path, token, nil, &items); err != nil {
			return nil, fmt.Errorf("fetch module %d items: %w", moduleID, err)
		}

		var fragments []domain.Fragment
		for _, item := range items {
			if item.Type != "Page" {
				continue
			}
			frag, err := c.fetchPage(ctx, token, item)
			if err != nil {
				// One unreadable page doesn't sink the module.
				slog.Warn("Skipping unreadable module page",
					"module", moduleID, "item", item.ID, "error", err)
				continue
			}
			if frag.WordCount > 0 {
				fragments = append(fragments, frag)
			}
		}
		out[strconv.Itoa(moduleID)] = fragments
	}

	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, token string, item moduleItem) (domain.Fragment, error) {
	// item.URL is an absolute API URL; reuse only its path.
	path := item.URL
	if idx := strings.Index(path, "/api/"); idx > 0 {
		path = path[idx:]
	}

	var page pagePayload
	if err := c.do(ctx, "fetch_page", "GET", path, token, nil, &page); err != nil {
		return domain.Fragment{}, err
	}

	text := stripHTML(page.Body)
	title := page.Title
	if title == "" {
		title = item.Title
	}
	return domain.Fragment{
		Title:      title,
		Content:    text,
		WordCount:  len(strings.Fields(text)),
		SourceType: string(domain.SourceTypeExternal),
	}, nil
}

func stripHTML(body string) string {
	text := tagPattern.ReplaceAllString(body, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return strings.Join(strings.Fields(text), " ")
}

package eval

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// urlPattern matches URL-shaped substrings in answer text. Loose on
// purpose: a hallucinated link is rarely well-formed.
var urlPattern = regexp.MustCompile(`http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\(\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)

// LinkChecker probes URLs found in answers. Any broken, unreachable, or
// erroring link fails the whole answer.
type LinkChecker struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewLinkChecker creates a checker with a per-probe timeout.
func NewLinkChecker(timeout time.Duration) *LinkChecker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LinkChecker{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Check extracts URLs from text and probes each with a HEAD request.
// Returns 1.0 when there are no URLs or all resolve below status 400, and
// 0.0 with the offending URL in the reason otherwise.
func (c *LinkChecker) Check(ctx context.Context, text string) (float64, string) {
	urls := urlPattern.FindAllString(text, -1)
	if len(urls) == 0 {
		return 1.0, "no URLs found"
	}

	for _, url := range urls {
		probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
		if err != nil {
			cancel()
			return 0.0, fmt.Sprintf("malformed URL %s", url)
		}

		resp, err := c.httpClient.Do(req)
		cancel()
		if err != nil {
			return 0.0, fmt.Sprintf("unreachable URL %s: %v", url, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			return 0.0, fmt.Sprintf("broken link %s: status %d", url, resp.StatusCode)
		}
	}
	return 1.0, fmt.Sprintf("all %d links resolved", len(urls))
}

package addressintel

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// FeedProvider reads a plain-text list of addresses and CIDRs, such as a
// self-hosted VPN exit list.
type FeedProvider struct {
	name   string
	url    string
	client *http.Client
}

// NewFeedProvider validates rawURL. When name is empty it is derived from
// the host and last path segment.
func NewFeedProvider(client *http.Client, name, rawURL string) (*FeedProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid feed URL %q: unsupported scheme", rawURL)
	}

	if name == "" {
		name = strings.TrimPrefix(u.Host, "www.")
		if path := strings.Trim(u.Path, "/"); path != "" {
			parts := strings.Split(path, "/")
			name = name + "-" + parts[len(parts)-1]
		}
	}
	return &FeedProvider{name: name, url: rawURL, client: client}, nil
}

func (f *FeedProvider) Name() string {
	return f.name
}

func (f *FeedProvider) Fetch(ctx context.Context) ([]netip.Prefix, error) {
	body, err := download(ctx, f.client, f.url)
	if err != nil {
		return nil, &FetchError{Source: f.name, Err: err}
	}
	prefixes, _, err := parseFeed(bytes.NewReader(body))
	if err != nil && len(prefixes) == 0 {
		return nil, &FetchError{Source: f.name, Err: err}
	}
	return prefixes, nil
}

// FeedProviders builds one FeedProvider per URL.
func FeedProviders(client *http.Client, urls []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		feed, err := NewFeedProvider(client, "", raw)
		if err != nil {
			return nil, err
		}
		providers = append(providers, feed)
	}
	return providers, nil
}

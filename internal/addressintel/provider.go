package addressintel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"time"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultFetchTimeout   = 10 * time.Second

	userAgent = "warden-addressintel/1"
	// maxBodySize caps a single source download. The largest upstream file
	// (Azure service tags) is a few megabytes.
	maxBodySize = 64 << 20
)

// Provider fetches the address ranges published by one remote source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]netip.Prefix, error)
}

// FetchError wraps a failure of a single source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewHTTPClient returns a client with a connect timeout and an overall
// request timeout. Redirects are followed.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: DefaultConnectTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = DefaultConnectTimeout
	return &http.Client{
		Timeout:   DefaultFetchTimeout,
		Transport: transport,
	}
}

// download performs a GET and returns the body of a 200 response.
func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, nil
}

func unmarshal(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

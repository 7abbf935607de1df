package addressintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"warden/internal/addressintel/metrics"
	"warden/internal/verification"
	"warden/pkg/platform/circuit"
)

const (
	// VPNProcessorID is the pipeline identifier of the VPN API check.
	VPNProcessorID = "vpn"

	IPHubBaseURL = "https://v2.api.iphub.info/ip/"

	DefaultVPNCacheSize = 10_000
	DefaultVPNCacheTTL  = 6 * time.Hour
)

// ReasonVPNDetected is shown to players flagged by the VPN API.
const ReasonVPNDetected = "A VPN or proxy was detected on your connection. Please disable it."

// ErrRateLimited is returned when the VPN API refuses further lookups.
var ErrRateLimited = errors.New("vpn api rate limit reached")

// ErrCircuitOpen is returned without calling the API after repeated failures.
var ErrCircuitOpen = errors.New("vpn api circuit open")

// IPHub classifies addresses with the iphub.info API.
// Verdicts are cached per address.
type IPHub struct {
	client  *http.Client
	baseURL string
	token   string
	cache   *expirable.LRU[netip.Addr, bool]
	breaker *circuit.Breaker

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type IPHubOption func(*iphubConfig)

type iphubConfig struct {
	client    *http.Client
	baseURL   string
	cacheSize int
	cacheTTL  time.Duration
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func WithIPHubClient(client *http.Client) IPHubOption {
	return func(c *iphubConfig) {
		c.client = client
	}
}

func WithIPHubBaseURL(u string) IPHubOption {
	return func(c *iphubConfig) {
		c.baseURL = u
	}
}

// WithIPHubCache sizes the verdict cache. Non-positive values keep the defaults.
func WithIPHubCache(size int, ttl time.Duration) IPHubOption {
	return func(c *iphubConfig) {
		if size > 0 {
			c.cacheSize = size
		}
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithIPHubBreaker replaces the default breaker guarding the API.
func WithIPHubBreaker(b *circuit.Breaker) IPHubOption {
	return func(c *iphubConfig) {
		c.breaker = b
	}
}

func WithIPHubLogger(logger *slog.Logger) IPHubOption {
	return func(c *iphubConfig) {
		c.logger = logger
	}
}

func WithIPHubMetrics(m *metrics.Metrics) IPHubOption {
	return func(c *iphubConfig) {
		c.metrics = m
	}
}

func NewIPHub(token string, opts ...IPHubOption) (*IPHub, error) {
	if token == "" {
		return nil, fmt.Errorf("iphub token is required")
	}
	cfg := iphubConfig{
		baseURL:   IPHubBaseURL,
		cacheSize: DefaultVPNCacheSize,
		cacheTTL:  DefaultVPNCacheTTL,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.client == nil {
		cfg.client = NewHTTPClient()
	}
	if cfg.breaker == nil {
		cfg.breaker = circuit.New(VPNProcessorID, circuit.WithCooldown(time.Minute))
	}
	if !strings.HasSuffix(cfg.baseURL, "/") {
		cfg.baseURL += "/"
	}

	return &IPHub{
		client:  cfg.client,
		baseURL: cfg.baseURL,
		token:   token,
		cache:   expirable.NewLRU[netip.Addr, bool](cfg.cacheSize, nil, cfg.cacheTTL),
		breaker: cfg.breaker,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}, nil
}

// IsVPN reports whether the API flags addr as non-residential.
// Local and private addresses are never looked up.
func (h *IPHub) IsVPN(ctx context.Context, addr netip.Addr) (bool, error) {
	addr = addr.Unmap().WithZone("")
	if !addr.IsValid() || addr.IsLoopback() || addr.IsUnspecified() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return false, nil
	}

	if verdict, ok := h.cache.Get(addr); ok {
		if h.metrics != nil {
			h.metrics.IncrementVPNCacheHits()
		}
		return verdict, nil
	}

	if !h.breaker.Allow() {
		h.observe("circuit_open")
		return false, ErrCircuitOpen
	}

	verdict, err := h.lookup(ctx, addr)
	if err != nil {
		h.observe(outcomeOf(err))
		if _, change := h.breaker.RecordFailure(); change.Opened {
			h.logger.WarnContext(ctx, "vpn api circuit opened", "error", err)
		}
		return false, err
	}
	if _, change := h.breaker.RecordSuccess(); change.Closed {
		h.logger.InfoContext(ctx, "vpn api circuit closed")
	}
	h.cache.Add(addr, verdict)
	if verdict {
		h.observe("flagged")
	} else {
		h.observe("clean")
	}
	return verdict, nil
}

func (h *IPHub) lookup(ctx context.Context, addr netip.Addr) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+addr.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("X-Key", h.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("iphub lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return false, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("iphub lookup: unexpected status code %d", resp.StatusCode)
	}

	// block: 0 residential or business, 1 non-residential, 2 mixed.
	var body struct {
		Block *int `json:"block"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("iphub lookup: decode: %w", err)
	}
	if body.Block == nil {
		return false, fmt.Errorf("iphub lookup: missing block field")
	}
	return *body.Block != 0, nil
}

// Evaluate rejects connections the API flags. Lookup errors, including rate
// limiting, are returned to the pipeline.
func (h *IPHub) Evaluate(ctx context.Context, conn verification.Connection) (verification.Result, error) {
	vpn, err := h.IsVPN(ctx, conn.Address)
	if err != nil {
		return verification.Result{}, err
	}
	if vpn {
		h.logger.InfoContext(ctx, "vpn detected",
			"player", conn.Name,
			"uuid", conn.UUID,
			"address", conn.Address.String(),
		)
		return verification.Failure(ReasonVPNDetected, 0), nil
	}
	return verification.Success(), nil
}

func (h *IPHub) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.IncrementVPNLookups(outcome)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrRateLimited) {
		return "rate_limited"
	}
	return "error"
}

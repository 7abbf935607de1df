package addressintel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Upstream locations of the built-in sources.
const (
	AzureDownloadPageURL = "https://www.microsoft.com/en-us/download/confirmation.aspx?id=56519"
	GitHubMetaURL        = "https://api.github.com/meta"
	AWSRangesURL         = "https://ip-ranges.amazonaws.com/ip-ranges.json"
	GoogleCloudRangesURL = "https://www.gstatic.com/ipranges/cloud.json"
	OracleCloudRangesURL = "https://docs.cloud.oracle.com/en-us/iaas/tools/public_ip_ranges.json"
)

// Names accepted by BuiltinProviders.
const (
	SourceAzure       = "azure"
	SourceGitHub      = "github"
	SourceAWS         = "aws"
	SourceGoogleCloud = "gcp"
	SourceOracleCloud = "oracle"
)

var errAzureLinkNotFound = errors.New("service tags download link not found")

// jsonProvider downloads one JSON document and extracts its address entries.
type jsonProvider struct {
	name    string
	client  *http.Client
	locate  func(ctx context.Context) (string, error)
	extract func(body []byte) ([]string, error)
}

func (p *jsonProvider) Name() string {
	return p.name
}

func (p *jsonProvider) Fetch(ctx context.Context) ([]netip.Prefix, error) {
	target, err := p.locate(ctx)
	if err != nil {
		return nil, &FetchError{Source: p.name, Err: err}
	}
	body, err := download(ctx, p.client, target)
	if err != nil {
		return nil, &FetchError{Source: p.name, Err: err}
	}
	entries, err := p.extract(body)
	if err != nil {
		return nil, &FetchError{Source: p.name, Err: err}
	}
	prefixes, _ := parseEntries(entries)
	return prefixes, nil
}

func fixed(u string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return u, nil }
}

// NewAzureProvider discovers the current ServiceTags_Public file from the
// Microsoft download page and reads the AzureCloud address prefixes.
func NewAzureProvider(client *http.Client, pageURL string) Provider {
	return &jsonProvider{
		name:   SourceAzure,
		client: client,
		locate: func(ctx context.Context) (string, error) {
			page, err := download(ctx, client, pageURL)
			if err != nil {
				return "", err
			}
			return findAzureDownloadLink(page, pageURL)
		},
		extract: func(body []byte) ([]string, error) {
			var doc struct {
				Values []struct {
					Name       string `json:"name"`
					Properties struct {
						AddressPrefixes []string `json:"addressPrefixes"`
					} `json:"properties"`
				} `json:"values"`
			}
			if err := unmarshal(body, &doc); err != nil {
				return nil, err
			}
			var entries []string
			for _, v := range doc.Values {
				if v.Name == "AzureCloud" {
					entries = append(entries, v.Properties.AddressPrefixes...)
				}
			}
			return entries, nil
		},
	}
}

// findAzureDownloadLink returns the first absolute link to
// download.microsoft.com whose target names the public service tags file.
func findAzureDownloadLink(page []byte, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse download page: %w", err)
	}

	var found string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				abs := base.ResolveReference(ref).String()
				if strings.Contains(abs, "download.microsoft.com") && strings.Contains(abs, "ServiceTags_Public") {
					found = abs
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if found == "" {
		return "", errAzureLinkNotFound
	}
	return found, nil
}

// NewGitHubProvider reads the GitHub Actions runner ranges.
func NewGitHubProvider(client *http.Client, metaURL string) Provider {
	return &jsonProvider{
		name:   SourceGitHub,
		client: client,
		locate: fixed(metaURL),
		extract: func(body []byte) ([]string, error) {
			var doc struct {
				Actions []string `json:"actions"`
			}
			if err := unmarshal(body, &doc); err != nil {
				return nil, err
			}
			return doc.Actions, nil
		},
	}
}

func NewAWSProvider(client *http.Client, rangesURL string) Provider {
	return &jsonProvider{
		name:   SourceAWS,
		client: client,
		locate: fixed(rangesURL),
		extract: func(body []byte) ([]string, error) {
			var doc struct {
				Prefixes []struct {
					IPPrefix string `json:"ip_prefix"`
				} `json:"prefixes"`
				IPv6Prefixes []struct {
					IPv6Prefix string `json:"ipv6_prefix"`
				} `json:"ipv6_prefixes"`
			}
			if err := unmarshal(body, &doc); err != nil {
				return nil, err
			}
			entries := make([]string, 0, len(doc.Prefixes)+len(doc.IPv6Prefixes))
			for _, p := range doc.Prefixes {
				entries = append(entries, p.IPPrefix)
			}
			for _, p := range doc.IPv6Prefixes {
				entries = append(entries, p.IPv6Prefix)
			}
			return entries, nil
		},
	}
}

func NewGoogleCloudProvider(client *http.Client, rangesURL string) Provider {
	return &jsonProvider{
		name:   SourceGoogleCloud,
		client: client,
		locate: fixed(rangesURL),
		extract: func(body []byte) ([]string, error) {
			var doc struct {
				Prefixes []struct {
					IPv4Prefix string `json:"ipv4Prefix"`
					IPv6Prefix string `json:"ipv6Prefix"`
				} `json:"prefixes"`
			}
			if err := unmarshal(body, &doc); err != nil {
				return nil, err
			}
			entries := make([]string, 0, len(doc.Prefixes))
			for _, p := range doc.Prefixes {
				if p.IPv4Prefix != "" {
					entries = append(entries, p.IPv4Prefix)
				} else {
					entries = append(entries, p.IPv6Prefix)
				}
			}
			return entries, nil
		},
	}
}

func NewOracleCloudProvider(client *http.Client, rangesURL string) Provider {
	return &jsonProvider{
		name:   SourceOracleCloud,
		client: client,
		locate: fixed(rangesURL),
		extract: func(body []byte) ([]string, error) {
			var doc struct {
				Regions []struct {
					CIDRs []struct {
						CIDR string `json:"cidr"`
					} `json:"cidrs"`
				} `json:"regions"`
			}
			if err := unmarshal(body, &doc); err != nil {
				return nil, err
			}
			var entries []string
			for _, region := range doc.Regions {
				for _, c := range region.CIDRs {
					entries = append(entries, c.CIDR)
				}
			}
			return entries, nil
		},
	}
}

// BuiltinProviders returns the named cloud sources. An empty list selects all of them.
func BuiltinProviders(client *http.Client, names []string) ([]Provider, error) {
	constructors := map[string]func() Provider{
		SourceAzure:       func() Provider { return NewAzureProvider(client, AzureDownloadPageURL) },
		SourceGitHub:      func() Provider { return NewGitHubProvider(client, GitHubMetaURL) },
		SourceAWS:         func() Provider { return NewAWSProvider(client, AWSRangesURL) },
		SourceGoogleCloud: func() Provider { return NewGoogleCloudProvider(client, GoogleCloudRangesURL) },
		SourceOracleCloud: func() Provider { return NewOracleCloudProvider(client, OracleCloudRangesURL) },
	}
	if len(names) == 0 {
		names = []string{SourceAzure, SourceGitHub, SourceAWS, SourceGoogleCloud, SourceOracleCloud}
	}

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		build, ok := constructors[name]
		if !ok {
			return nil, fmt.Errorf("unknown address source %q", name)
		}
		providers = append(providers, build())
	}
	return providers, nil
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
	"github.com/cli/go-gh/v2/pkg/auth"
)

const (
	DefaultAPIURL = "https://api.github.com"
	DefaultRepo   = "kubescape/kubescape"

	userAgent = "ksinstall/1.0"
)

// Release is the subset of registry metadata the installer relies on.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// DownloadBase derives the asset download base from the release page URL.
func (r Release) DownloadBase() string {
	return strings.Replace(r.HTMLURL, "/tag/", "/download/", 1)
}

// ReleaseClient queries the upstream release registry. Token is optional;
// when set the query goes through the authenticated GitHub REST client.
type ReleaseClient struct {
	APIURL string
	Repo   string
	Token  string
	HTTP   *http.Client
	Cache  *ReleaseCache
}

// NewReleaseClient returns a client for apiURL and repo with defaults filled in.
func NewReleaseClient(apiURL, repo, token string) *ReleaseClient {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = DefaultAPIURL
	}
	if strings.TrimSpace(repo) == "" {
		repo = DefaultRepo
	}
	return &ReleaseClient{
		APIURL: strings.TrimRight(apiURL, "/"),
		Repo:   repo,
		Token:  token,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Latest fetches the latest release metadata. A cached entry is used when
// still fresh. Network and decode failures are returned unchanged; the caller
// decides whether an unreachable registry is fatal.
func (c *ReleaseClient) Latest(ctx context.Context) (Release, error) {
	if c.Cache != nil {
		if rel, ok := c.Cache.Get(); ok {
			return rel, nil
		}
	}

	var (
		rel Release
		err error
	)
	if c.Token != "" {
		rel, err = c.latestAuthenticated(ctx)
	} else {
		rel, err = c.latestAnonymous(ctx)
	}
	if err != nil {
		return Release{}, err
	}
	if rel.TagName == "" {
		return Release{}, fmt.Errorf("latest release: %w: missing tag_name", ErrMalformedOutput)
	}

	if c.Cache != nil {
		c.Cache.Put(rel)
	}
	return rel, nil
}

// LatestTag returns the tag of the latest upstream release.
func (c *ReleaseClient) LatestTag(ctx context.Context) (string, error) {
	rel, err := c.Latest(ctx)
	if err != nil {
		return "", err
	}
	return rel.TagName, nil
}

// LatestDownloadBase returns the download base URL of the latest release.
func (c *ReleaseClient) LatestDownloadBase(ctx context.Context) (string, error) {
	rel, err := c.Latest(ctx)
	if err != nil {
		return "", err
	}
	if rel.HTMLURL == "" {
		return "", fmt.Errorf("latest release: %w: missing html_url", ErrMalformedOutput)
	}
	return rel.DownloadBase(), nil
}

func (c *ReleaseClient) endpoint() string {
	return fmt.Sprintf("%s/repos/%s/releases/latest", c.APIURL, c.Repo)
}

func (c *ReleaseClient) latestAnonymous(ctx context.Context) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(), nil)
	if err != nil {
		return Release{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("query latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Release{}, fmt.Errorf("query latest release: unexpected status %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Release{}, fmt.Errorf("decode latest release: %w: %v", ErrMalformedOutput, err)
	}
	return rel, nil
}

func (c *ReleaseClient) latestAuthenticated(ctx context.Context) (Release, error) {
	opts := api.ClientOptions{
		AuthToken: c.Token,
		Host:      apiHost(c.APIURL),
		Headers:   map[string]string{"User-Agent": userAgent},
		Timeout:   30 * time.Second,
	}
	if c.HTTP != nil && c.HTTP.Transport != nil {
		opts.Transport = c.HTTP.Transport
	}
	client, err := api.NewRESTClient(opts)
	if err != nil {
		return Release{}, fmt.Errorf("create GitHub API client: %w", err)
	}

	var rel Release
	// An absolute URL bypasses go-gh's host based URL rewriting.
	if err := client.DoWithContext(ctx, http.MethodGet, c.endpoint(), nil, &rel); err != nil {
		return Release{}, fmt.Errorf("query latest release: %w", err)
	}
	return rel, nil
}

func apiHost(apiURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(apiURL, "https://"), "http://")
	host = strings.SplitN(host, "/", 2)[0]
	if host == "api.github.com" {
		return "github.com"
	}
	return host
}

// ResolveToken finds a GitHub token: first the configured environment
// variable, then the gh CLI credential store for github.com.
func ResolveToken(tokenEnv string) string {
	if tokenEnv != "" {
		if v := strings.TrimSpace(os.Getenv(tokenEnv)); v != "" {
			return v
		}
	}
	token, _ := auth.TokenForHost("github.com")
	return token
}

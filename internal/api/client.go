// Package api implements the client for the remote host-intelligence
// query service: one-shot REST requests plus the real-time push stream.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/netlens/internal/model"
)

// Client wraps the query service's REST and streaming endpoints.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	key          string
	baseURL      string
	streamURL    string
}

// NewClient creates a query service client. The stream endpoint gets its
// own http.Client without an overall timeout, because push subscriptions
// are unbounded; idle detection happens per read instead.
func NewClient(key, baseURL, streamURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		key:          key,
		baseURL:      strings.TrimRight(baseURL, "/"),
		streamURL:    strings.TrimRight(streamURL, "/"),
	}
}

// SetStreamURL overrides the streaming endpoint (the --streamer option).
func (c *Client) SetStreamURL(u string) {
	c.streamURL = strings.TrimRight(u, "/")
}

// Info returns the credits available to the account.
func (c *Client) Info(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.get(ctx, "/api-info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// MyIP returns the external address the service sees for the caller.
func (c *Client) MyIP(ctx context.Context) (string, error) {
	var ip string
	if err := c.get(ctx, "/tools/myip", nil, &ip); err != nil {
		return "", err
	}
	return ip, nil
}

// Count returns the number of results for a query, with optional facet
// breakdowns ("country:10,org:10").
func (c *Client) Count(ctx context.Context, query, facets string) (*SearchResult, error) {
	params := url.Values{"query": {query}}
	if facets != "" {
		params.Set("facets", facets)
	}
	var result SearchResult
	if err := c.get(ctx, "/search/count", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search runs a search query and returns one page of matching banners.
func (c *Client) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	params := url.Values{"query": {query}}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	var result SearchResult
	if err := c.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Host returns all available information for an IP address.
func (c *Client) Host(ctx context.Context, ip string, history bool) (*HostInfo, error) {
	params := url.Values{}
	if history {
		params.Set("history", "true")
	}
	var host HostInfo
	if err := c.get(ctx, "/host/"+url.PathEscape(ip), params, &host); err != nil {
		return nil, err
	}
	return &host, nil
}

// Ports lists the ports the service's standard crawl already covers.
func (c *Client) Ports(ctx context.Context) ([]int, error) {
	var ports []int
	if err := c.get(ctx, "/ports", nil, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

// Protocols lists the protocols available for on-demand scans.
func (c *Client) Protocols(ctx context.Context) (map[string]string, error) {
	protocols := make(map[string]string)
	if err := c.get(ctx, "/protocols", nil, &protocols); err != nil {
		return nil, err
	}
	return protocols, nil
}

// Datasets lists the bulk data collections the account can download.
func (c *Client) Datasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	if err := c.get(ctx, "/data", nil, &datasets); err != nil {
		return nil, err
	}
	return datasets, nil
}

// DatasetFiles lists the downloadable files of one dataset.
func (c *Client) DatasetFiles(ctx context.Context, dataset string) ([]DatasetFile, error) {
	var files []DatasetFile
	if err := c.get(ctx, "/data/"+url.PathEscape(dataset), nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// HoneyScore returns the 0-1 probability that the host is a honeypot.
func (c *Client) HoneyScore(ctx context.Context, ip string) (float64, error) {
	var score float64
	if err := c.get(ctx, "/honeyscore/"+url.PathEscape(ip), nil, &score); err != nil {
		return 0, err
	}
	return score, nil
}

// FetchFile streams a dataset file URL into w. It uses the untimed client
// because bulk files can take longer than any fixed request timeout.
func (c *Client) FetchFile(ctx context.Context, fileURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

// ScanSubmit requests an on-demand scan of the given netblocks and
// returns immediately with the job id and remaining scan credits.
func (c *Client) ScanSubmit(ctx context.Context, netblocks []string, force bool) (*model.ScanJob, error) {
	form := url.Values{"ips": {strings.Join(netblocks, ",")}}
	if force {
		form.Set("force", "true")
	}

	var resp scanResponse
	if err := c.postForm(ctx, "/scan", form, &resp); err != nil {
		return nil, err
	}

	return &model.ScanJob{
		ID:          resp.ID,
		Netblocks:   netblocks,
		Status:      model.ScanSubmitted,
		CreditsLeft: resp.CreditsLeft,
		Created:     time.Now(),
	}, nil
}

// ScanStatus performs a single synchronous status check for a scan job.
func (c *Client) ScanStatus(ctx context.Context, id string) (model.ScanStatus, error) {
	var resp scanStatusResponse
	if err := c.get(ctx, "/scan/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", err
	}

	switch strings.ToUpper(resp.Status) {
	case "DONE":
		return model.ScanDone, nil
	case "SUBMITTED", "QUEUED":
		return model.ScanSubmitted, nil
	default:
		return model.ScanRunning, nil
	}
}

// CreateAlert registers a temporary subscription for push notifications
// covering the given netblocks.
func (c *Client) CreateAlert(ctx context.Context, name string, netblocks []string) (*model.Alert, error) {
	body := map[string]any{
		"name": name,
		"filters": map[string]any{
			"ip": netblocks,
		},
	}

	var resp alertResponse
	if err := c.postJSON(ctx, "/alert", body, &resp); err != nil {
		return nil, err
	}

	return &model.Alert{
		ID:        resp.ID,
		Name:      resp.Name,
		Netblocks: resp.Filters.IP,
	}, nil
}

// Alerts lists the account's alert subscriptions.
func (c *Client) Alerts(ctx context.Context, includeExpired bool) ([]model.Alert, error) {
	params := url.Values{}
	if includeExpired {
		params.Set("include_expired", "true")
	}

	var resp []alertResponse
	if err := c.get(ctx, "/alert/info", params, &resp); err != nil {
		return nil, err
	}

	alerts := make([]model.Alert, 0, len(resp))
	for _, a := range resp {
		alerts = append(alerts, model.Alert{
			ID:        a.ID,
			Name:      a.Name,
			Netblocks: a.Filters.IP,
			Expired:   a.Expired,
		})
	}
	return alerts, nil
}

// DeleteAlert removes an alert subscription.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+"/alert/"+url.PathEscape(id), nil, "", nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	u := c.baseURL + path + "?" + c.withKey(params).Encode()
	return c.do(ctx, http.MethodGet, u, nil, "", out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	u := c.baseURL + path + "?" + c.withKey(url.Values{}).Encode()
	body := strings.NewReader(form.Encode())
	return c.do(ctx, http.MethodPost, u, body, "application/x-www-form-urlencoded", out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	u := c.baseURL + path + "?" + c.withKey(url.Values{}).Encode()
	return c.do(ctx, http.MethodPost, u, strings.NewReader(string(data)), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) withKey(params url.Values) url.Values {
	params.Set("key", c.key)
	return params
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		var body errorResponse
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

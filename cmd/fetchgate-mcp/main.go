package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/fetchgate/cleaner"
)

// fetchResponse mirrors the gateway's normalized response.
type fetchResponse struct {
	URL             string            `json:"url"`
	Status          int               `json:"status"`
	Reason          string            `json:"reason"`
	Headers         map[string]string `json:"headers"`
	Cookies         map[string]string `json:"cookies"`
	Body            string            `json:"body"`
	SelectedContent []string          `json:"selected_content"`
}

// errorResponse mirrors the gateway's error body; Detail is a string or a
// list of field errors.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Arguments consumed by the bridge itself and never forwarded.
const (
	argOutputFormat = "output_format"
	argMainContent  = "main_content"
)

// toolSpec describes one gateway route exposed as an MCP tool.
type toolSpec struct {
	name        string
	path        string
	description string
	options     []mcp.ToolOption
}

func main() {
	apiURL := os.Getenv("FETCHGATE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	apiKey := os.Getenv("FETCHGATE_API_KEY")

	s := server.NewMCPServer(
		"fetchgate",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	b := &bridge{
		apiURL:  strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 180 * time.Second},
		cleaner: cleaner.NewCleaner(),
	}
	for _, spec := range toolSpecs() {
		s.AddTool(spec.tool(), b.handler(spec.path))
	}

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func (t toolSpec) tool() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.description),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to fetch"),
		),
		mcp.WithString("css_selector",
			mcp.Description("Return only the elements matching this CSS selector"),
		),
		mcp.WithString("xpath_selector",
			mcp.Description("Return only the nodes matching this XPath expression (ignored when css_selector is set)"),
		),
		mcp.WithString("proxy",
			mcp.Description("Proxy URL, e.g. http://host:3128 or socks5://host:1080"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Request timeout (seconds for fetcher tools, milliseconds for browser tools)"),
		),
		mcp.WithString(argOutputFormat,
			mcp.Description("How to render the page body: 'markdown' (default), 'text', or 'html'"),
			mcp.Enum(cleaner.FormatMarkdown, cleaner.FormatText, cleaner.FormatHTML),
		),
		mcp.WithBoolean(argMainContent,
			mcp.Description("Keep only the main article content before rendering (default: false)"),
		),
	}
	opts = append(opts, t.options...)
	return mcp.NewTool(t.name, opts...)
}

func toolSpecs() []toolSpec {
	fetcherOpts := []mcp.ToolOption{
		mcp.WithObject("headers", mcp.Description("Extra request headers")),
		mcp.WithObject("cookies", mcp.Description("Cookies to send")),
		mcp.WithObject("params", mcp.Description("Query parameters to append to the URL")),
		mcp.WithBoolean("follow_redirects", mcp.Description("Follow redirects (default: true)")),
		mcp.WithBoolean("verify", mcp.Description("Verify TLS certificates (default: true)")),
		mcp.WithString("impersonate",
			mcp.Description("Browser TLS fingerprint to impersonate: 'chrome' (default), 'firefox', 'safari', 'golang'"),
		),
		mcp.WithBoolean("stealthy_headers", mcp.Description("Send realistic browser headers (default: true)")),
	}
	bodyOpts := append([]mcp.ToolOption{
		mcp.WithObject("data", mcp.Description("Form fields sent as application/x-www-form-urlencoded")),
		mcp.WithObject("json_data", mcp.Description("JSON body; takes precedence over data")),
	}, fetcherOpts...)

	browserOpts := []mcp.ToolOption{
		mcp.WithBoolean("headless", mcp.Description("Run the browser headless (default: true)")),
		mcp.WithBoolean("disable_resources", mcp.Description("Block images, fonts, stylesheets and media (default: false)")),
		mcp.WithBoolean("network_idle", mcp.Description("Wait until the network is idle (default: false)")),
		mcp.WithBoolean("load_dom", mcp.Description("Wait for the load event (default: true)")),
		mcp.WithNumber("wait", mcp.Description("Extra milliseconds to wait after loading")),
		mcp.WithString("wait_selector", mcp.Description("CSS selector to wait for")),
		mcp.WithString("wait_selector_state",
			mcp.Description("State to wait for: 'attached' (default), 'detached', 'visible', 'hidden'"),
			mcp.Enum("attached", "detached", "visible", "hidden"),
		),
		mcp.WithString("locale", mcp.Description("Browser locale, e.g. en-US")),
		mcp.WithString("useragent", mcp.Description("User-Agent override")),
		mcp.WithObject("extra_headers", mcp.Description("Extra headers sent with every request")),
		mcp.WithBoolean("google_search", mcp.Description("Send a Google search Referer (default: true)")),
		mcp.WithBoolean("real_chrome", mcp.Description("Use the locally installed Chrome (default: false)")),
		mcp.WithString("cdp_url", mcp.Description("Connect to an existing browser over CDP instead of launching one")),
	}
	stealthyOpts := append([]mcp.ToolOption{
		mcp.WithBoolean("solve_cloudflare", mcp.Description("Wait for and solve Cloudflare challenges (default: false)")),
		mcp.WithBoolean("block_webrtc", mcp.Description("Block WebRTC to avoid IP leaks (default: false)")),
		mcp.WithBoolean("hide_canvas", mcp.Description("Add noise to canvas fingerprinting (default: false)")),
		mcp.WithBoolean("allow_webgl", mcp.Description("Leave WebGL enabled (default: true)")),
	}, browserOpts...)

	return []toolSpec{
		{
			name:        "fetch_get",
			path:        "/api/fetcher/get",
			description: "Fetch a URL with a fast HTTP GET that impersonates a browser's TLS fingerprint. Does not run JavaScript.",
			options:     fetcherOpts,
		},
		{
			name:        "fetch_post",
			path:        "/api/fetcher/post",
			description: "Send an HTTP POST with a form or JSON body and return the response.",
			options:     bodyOpts,
		},
		{
			name:        "fetch_put",
			path:        "/api/fetcher/put",
			description: "Send an HTTP PUT with a form or JSON body and return the response.",
			options:     bodyOpts,
		},
		{
			name:        "fetch_delete",
			path:        "/api/fetcher/delete",
			description: "Send an HTTP DELETE and return the response.",
			options:     fetcherOpts,
		},
		{
			name:        "dynamic_fetch",
			path:        "/api/dynamic/fetch",
			description: "Load a page in a real browser so JavaScript-rendered content is included.",
			options:     browserOpts,
		},
		{
			name:        "stealthy_fetch",
			path:        "/api/stealthy/fetch",
			description: "Load a page in a fingerprint-hardened browser. Use for sites with bot protection such as Cloudflare.",
			options:     stealthyOpts,
		},
	}
}

// bridge forwards tool calls to the gateway's REST API.
type bridge struct {
	apiURL  string
	apiKey  string
	client  *http.Client
	cleaner *cleaner.Cleaner
}

func (b *bridge) handler(path string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := request.RequireString("url"); err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		format := request.GetString(argOutputFormat, cleaner.FormatMarkdown)
		mainContent := request.GetBool(argMainContent, false)

		payload := make(map[string]any)
		for k, v := range request.GetArguments() {
			if k == argOutputFormat || k == argMainContent {
				continue
			}
			payload[k] = v
		}

		status, respBody, err := b.post(ctx, path, payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(errorText(status, respBody)), nil
		}

		var resp fetchResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		text, err := b.render(&resp, format, mainContent)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// post sends payload to the gateway and returns the status and raw body.
func (b *bridge) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-API-Key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// render builds the tool output: a status header followed by the selected
// content, or the body rendered in the requested format.
func (b *bridge) render(resp *fetchResponse, format string, mainContent bool) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\nStatus: %d %s\n", resp.URL, resp.Status, resp.Reason)

	if resp.SelectedContent != nil {
		fmt.Fprintf(&sb, "Matches: %d\n\n", len(resp.SelectedContent))
		for i, s := range resp.SelectedContent {
			fmt.Fprintf(&sb, "--- [%d] ---\n%s\n\n", i+1, s)
		}
		return sb.String(), nil
	}

	if strings.TrimSpace(resp.Body) == "" {
		sb.WriteString("\n(empty body)")
		return sb.String(), nil
	}

	if !looksLikeHTML(resp.Headers, resp.Body) {
		sb.WriteString("\n")
		sb.WriteString(resp.Body)
		return sb.String(), nil
	}

	doc, err := b.cleaner.Render(resp.Body, resp.URL, format, mainContent)
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	if doc.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", doc.Title)
	}
	if doc.Fallback != "" {
		fmt.Fprintf(&sb, "Main content: %s, showing the whole page\n", doc.Fallback)
	}
	sb.WriteString("\n")
	sb.WriteString(doc.Content)
	fmt.Fprintf(&sb, "\n\n---\nTokens: %d (original %d)", doc.CleanedTokens, doc.OriginalTokens)
	return sb.String(), nil
}

func looksLikeHTML(headers map[string]string, body string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return strings.Contains(strings.ToLower(v), "html")
		}
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}

// errorText formats a gateway error body for the tool result.
func errorText(status int, body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || len(e.Detail) == 0 {
		return fmt.Sprintf("gateway returned %d", status)
	}
	var msg string
	if err := json.Unmarshal(e.Detail, &msg); err == nil {
		return fmt.Sprintf("gateway returned %d: %s", status, msg)
	}
	return fmt.Sprintf("gateway returned %d: %s", status, string(e.Detail))
}

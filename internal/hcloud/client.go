package hcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hcloud-firewall-controller/internal/model"
)

// DefaultBaseURL is the production Hetzner Cloud API endpoint.
const DefaultBaseURL = "https://api.hetzner.cloud/v1"

const requestTimeout = 30 * time.Second

// ErrNotFound is returned by FindFirewall when no firewall has the
// requested name.
var ErrNotFound = errors.New("firewall not found")

// APIError is a structured error reported by the Hetzner Cloud API.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hetzner cloud api: %s: %s", e.Code, e.Message)
}

// Client is the abstract cloud API surface the reconciliation engine uses.
// It deliberately knows nothing about pagination, retries or transport.
type Client interface {
	FindFirewall(ctx context.Context, name string) (*model.Firewall, error)
	CreateFirewall(ctx context.Context, name string) (*model.Firewall, error)
	SetRules(ctx context.Context, firewallID int64, rules []model.RuleSpec) error
}

// HTTPClient talks to the Hetzner Cloud v1 API with one bearer token.
type HTTPClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for one API token. An empty baseURL selects the
// production endpoint; tests point it at a local server.
func NewClient(token, baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type firewallsResponse struct {
	Firewalls []wireFirewall `json:"firewalls"`
}

type firewallResponse struct {
	Firewall wireFirewall `json:"firewall"`
}

type errorEnvelope struct {
	Error *wireError `json:"error"`
}

type wireError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// FindFirewall lists firewalls and returns the one with the given name.
func (c *HTTPClient) FindFirewall(ctx context.Context, name string) (*model.Firewall, error) {
	var listing firewallsResponse
	if err := c.do(ctx, http.MethodGet, "/firewalls", nil, &listing); err != nil {
		return nil, fmt.Errorf("listing firewalls: %w", err)
	}

	for _, fw := range listing.Firewalls {
		slog.Debug("firewall found", "name", fw.Name, "id", fw.ID, "rules", len(fw.Rules))
		if fw.Name == name {
			return decodeFirewall(fw), nil
		}
	}
	return nil, ErrNotFound
}

// CreateFirewall creates a firewall with no rules.
func (c *HTTPClient) CreateFirewall(ctx context.Context, name string) (*model.Firewall, error) {
	body := map[string]string{"name": name}
	var created firewallResponse
	if err := c.do(ctx, http.MethodPost, "/firewalls", body, &created); err != nil {
		return nil, fmt.Errorf("creating firewall %q: %w", name, err)
	}
	slog.Debug("firewall created", "name", created.Firewall.Name, "id", created.Firewall.ID)
	return decodeFirewall(created.Firewall), nil
}

// SetRules replaces the firewall's entire rule set.
func (c *HTTPClient) SetRules(ctx context.Context, firewallID int64, rules []model.RuleSpec) error {
	body := map[string][]wireRule{"rules": encodeRules(rules)}
	path := fmt.Sprintf("/firewalls/%d/actions/set_rules", firewallID)
	if err := c.do(ctx, http.MethodPost, path, body, &struct{}{}); err != nil {
		return fmt.Errorf("setting rules on firewall %d: %w", firewallID, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	// The API reports failures both via status codes and via an error
	// object in the body, check the body first for the richer message.
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return &APIError{Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizely

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrAuth marks a failed client-credentials token exchange.
var ErrAuth = errors.New("optimizely: authentication failed")

// ErrNotConfigured is returned when credentials or endpoints are missing.
var ErrNotConfigured = errors.New("optimizely: not configured")

// UpstreamError is a non-2xx response from an Optimizely endpoint. Message
// is best effort; Raw holds the body as received.
type UpstreamError struct {
	StatusCode int
	Message    string
	Raw        json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("optimizely: upstream status %d: %s", e.StatusCode, e.Message)
}

// GraphQLError reports a 200 response whose body carried an errors array.
type GraphQLError struct {
	Errors json.RawMessage
}

func (e *GraphQLError) Error() string {
	return "optimizely: graphql query failed: " + string(e.Errors)
}

// Credentials identify an API client for the management API.
type Credentials struct {
	ClientID     string
	ClientSecret string
	APIURL       string
}

// Complete reports whether every credential field is set.
func (c Credentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.APIURL != ""
}

// Token is the access token returned to dashboard callers.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// Container is a BlankExperience item content can be created under.
type Container struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

const containersQuery = `query AllRoutesQuery {
  BlankExperience {
    items {
      _itemMetadata {
        key
        displayName
      }
    }
    total(all: true)
  }
}`

// Client calls the Optimizely management and Graph APIs.
type Client struct {
	http *http.Client
}

// NewClient returns a client using httpClient, or a default one with a
// 30 second timeout when nil.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient}
}

// FetchToken exchanges client credentials for an access token at
// {APIURL}/oauth/token.
func (c *Client) FetchToken(ctx context.Context, creds Credentials) (*Token, error) {
	if !creds.Complete() {
		return nil, ErrNotConfigured
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     strings.TrimRight(creds.APIURL, "/") + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, c.http))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuth, newUpstreamError(re.Response.StatusCode, re.Body))
		}
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	out := &Token{AccessToken: tok.AccessToken, TokenType: tok.TokenType}
	if !tok.Expiry.IsZero() {
		out.ExpiresIn = int(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return out, nil
}

// CreateContent posts item to the experimental content endpoint using the
// given bearer token and returns the CMS response body.
func (c *Client) CreateContent(ctx context.Context, apiURL, accessToken string, item any) (json.RawMessage, error) {
	if apiURL == "" {
		return nil, ErrNotConfigured
	}
	endpoint := strings.TrimRight(apiURL, "/") + "/preview3/experimental/content"
	auth := accessToken
	if !strings.HasPrefix(auth, "Bearer ") {
		auth = "Bearer " + auth
	}
	return c.postJSON(ctx, endpoint, auth, item)
}

// GraphQL runs query against the Graph endpoint with the single-key scheme.
func (c *Client) GraphQL(ctx context.Context, endpoint, authToken, query string, variables map[string]any) (json.RawMessage, error) {
	if endpoint == "" || authToken == "" {
		return nil, ErrNotConfigured
	}
	if variables == nil {
		variables = map[string]any{}
	}

	body, err := c.postJSON(ctx, endpoint, "epi-single "+authToken, map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && hasErrors(envelope.Errors) {
		return nil, &GraphQLError{Errors: envelope.Errors}
	}
	return body, nil
}

// Containers lists the BlankExperience items available as content containers.
func (c *Client) Containers(ctx context.Context, endpoint, authToken string) ([]Container, error) {
	body, err := c.GraphQL(ctx, endpoint, authToken, containersQuery, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			BlankExperience struct {
				Items []struct {
					Metadata struct {
						Key         string `json:"key"`
						DisplayName string `json:"displayName"`
					} `json:"_itemMetadata"`
				} `json:"items"`
			} `json:"BlankExperience"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("optimizely containers decode: %w", err)
	}

	containers := make([]Container, 0, len(result.Data.BlankExperience.Items))
	for _, it := range result.Data.BlankExperience.Items {
		name := it.Metadata.DisplayName
		if name == "" {
			name = it.Metadata.Key
		}
		containers = append(containers, Container{Key: it.Metadata.Key, DisplayName: name})
	}
	return containers, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, authorization string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("optimizely marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("optimizely request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("optimizely http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("optimizely read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newUpstreamError(resp.StatusCode, body)
	}
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return json.RawMessage("{}"), nil
	}
	return body, nil
}

// newUpstreamError decodes whatever error shape the provider sent.
func newUpstreamError(status int, body []byte) *UpstreamError {
	e := &UpstreamError{StatusCode: status, Message: http.StatusText(status)}
	if json.Valid(body) {
		e.Raw = json.RawMessage(body)
	}

	var shape map[string]any
	if err := json.Unmarshal(body, &shape); err != nil {
		if t := strings.TrimSpace(string(body)); t != "" && len(t) < 512 {
			e.Message = t
		}
		return e
	}

	for _, key := range []string{"error_description", "message", "detail", "title", "error"} {
		switch v := shape[key].(type) {
		case string:
			if v != "" {
				e.Message = v
				return e
			}
		case map[string]any:
			if m, ok := v["message"].(string); ok && m != "" {
				e.Message = m
				return e
			}
		}
	}
	return e
}

func hasErrors(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null")) && !bytes.Equal(t, []byte("[]"))
}

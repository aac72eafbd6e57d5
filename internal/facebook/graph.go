// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package facebook is a small client for the Facebook Graph API: page
// posts, page lookups and the user OAuth flow used to link pages.
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	fboauth "golang.org/x/oauth2/facebook"
)

// DefaultGraphURL is the versioned Graph API root.
const DefaultGraphURL = "https://graph.facebook.com/v19.0"

// fallbackMessage is reported when an error response carries no message.
const fallbackMessage = "Failed to post"

// UpstreamError is a non-2xx Graph response.
type UpstreamError struct {
	StatusCode int
	Message    string
	Raw        json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("facebook: status %d: %s", e.StatusCode, e.Message)
}

// Config holds the app credentials and endpoints.
type Config struct {
	GraphURL    string
	AppID       string
	AppSecret   string
	RedirectURI string
}

// Page is a Facebook Page as returned by the Graph API.
type Page struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AccessToken string   `json:"access_token,omitempty"`
	Tasks       []string `json:"tasks,omitempty"`
}

// Profile is the signed-in user's basic profile.
type Profile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl,omitempty"`
}

// Client talks to the Graph API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Graph client. A nil httpClient gets a 30 second timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	cfg.GraphURL = strings.TrimRight(cfg.GraphURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// PostFeed publishes a text post, with an optional link, to a page feed
// and returns the new post id.
func (c *Client) PostFeed(ctx context.Context, pageID, accessToken, message, link string) (string, error) {
	form := url.Values{"message": {message}, "access_token": {accessToken}}
	if link != "" {
		form.Set("link", link)
	}
	return c.create(ctx, pageID+"/feed", form)
}

// PostPhoto publishes an image by URL with caption and returns the post id.
func (c *Client) PostPhoto(ctx context.Context, pageID, accessToken, imageURL, caption string) (string, error) {
	form := url.Values{"url": {imageURL}, "caption": {caption}, "access_token": {accessToken}}
	return c.create(ctx, pageID+"/photos", form)
}

// Page looks up a page's id and name.
func (c *Client) Page(ctx context.Context, pageID, accessToken string) (*Page, error) {
	var p Page
	q := url.Values{"fields": {"id,name"}, "access_token": {accessToken}}
	if err := c.get(ctx, pageID, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Accounts lists the pages a user token can manage, with page tokens.
func (c *Client) Accounts(ctx context.Context, userToken string) ([]Page, error) {
	var resp struct {
		Data []Page `json:"data"`
	}
	q := url.Values{
		"fields":       {"id,name,access_token,tasks"},
		"limit":        {"100"},
		"access_token": {userToken},
	}
	if err := c.get(ctx, "me/accounts", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Me returns the profile owning accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	var resp struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	q := url.Values{"fields": {"id,name,picture"}, "access_token": {accessToken}}
	if err := c.get(ctx, "me", q, &resp); err != nil {
		return nil, err
	}
	return &Profile{ID: resp.ID, Name: resp.Name, PictureURL: resp.Picture.Data.URL}, nil
}

// ExtendToken trades a short-lived user token for a long-lived one.
func (c *Client) ExtendToken(ctx context.Context, shortLived string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.cfg.AppID},
		"client_secret":     {c.cfg.AppSecret},
		"fb_exchange_token": {shortLived},
	}
	if err := c.get(ctx, "oauth/access_token", q, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", errors.New("facebook: token exchange returned no access token")
	}
	return resp.AccessToken, nil
}

// OAuth2Config returns the code-flow configuration for the login dialog.
// The token endpoint follows GraphURL so it can be pointed at a test server.
func (c *Client) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.AppID,
		ClientSecret: c.cfg.AppSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   fboauth.Endpoint.AuthURL,
			TokenURL:  c.cfg.GraphURL + "/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL is the dialog URL the user is redirected to.
func (c *Client) AuthCodeURL(state string) string {
	return c.OAuth2Config().AuthCodeURL(state)
}

// Exchange trades an authorization code for a user access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := c.OAuth2Config().Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.http), code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", decodeError(re.Response.StatusCode, re.Body)
		}
		return "", fmt.Errorf("facebook exchange: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) create(ctx context.Context, path string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("facebook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	// Photo uploads return both the photo id and the feed post id.
	if resp.PostID != "" {
		return resp.PostID, nil
	}
	return resp.ID, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GraphURL+"/"+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("facebook request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("facebook http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("facebook read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("facebook decode: %w", err)
	}
	return nil
}

// decodeError reads {"error":{"message":...}} without trusting the shape.
func decodeError(status int, body []byte) *UpstreamError {
	e := &UpstreamError{StatusCode: status, Message: fallbackMessage}
	if !json.Valid(body) {
		return e
	}
	e.Raw = json.RawMessage(body)

	var shape map[string]any
	if err := json.Unmarshal(body, &shape); err != nil {
		return e
	}
	switch v := shape["error"].(type) {
	case map[string]any:
		if m, ok := v["message"].(string); ok && m != "" {
			e.Message = m
		}
	case string:
		if v != "" {
			e.Message = v
		}
	}
	return e
}

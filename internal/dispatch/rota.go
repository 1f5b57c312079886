package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token is one OAuth access/refresh token pair from the dispatch service.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is unusable, with a small skew so
// a token about to lapse is refreshed rather than sent.
func (t Token) Expired(now time.Time) bool {
	if t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt.Add(-30 * time.Second))
}

// Error is a non-2xx reply from the dispatch service.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("dispatch service replied %d: %s", e.Status, e.Body)
}

// Client talks to the external dispatch service: OAuth password-grant login,
// token refresh, and incident creation. Safe for concurrent use.
type Client struct {
	baseURL  string
	clientID string
	httpc    *http.Client

	mu      sync.Mutex
	token   Token
	persist func(Token, string)
}

// New builds a client. persist, when non-nil, is called with every new token
// and the username it was obtained for (blank on refresh).
func New(baseURL, clientID string, timeout time.Duration, persist func(Token, string)) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		httpc:    &http.Client{Timeout: timeout},
		persist:  persist,
	}
}

// SetToken seeds the client with a previously persisted token.
func (c *Client) SetToken(t Token) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

// HasToken reports whether a usable access token is loaded.
func (c *Client) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.token.Expired(time.Now())
}

type tokenReply struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginWithPassword performs the OAuth password grant and stores the token.
func (c *Client) LoginWithPassword(ctx context.Context, username, password string) error {
	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.clientID},
		"username":   {username},
		"password":   {password},
	}
	tok, err := c.postTokenForm(ctx, form)
	if err != nil {
		return err
	}
	c.storeToken(tok, username)
	return nil
}

// RefreshAccessToken exchanges the refresh token for a new access token. The
// service does not always return a new refresh token; keep the old one then.
func (c *Client) RefreshAccessToken(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.token.RefreshToken
	c.mu.Unlock()
	if refresh == "" {
		return fmt.Errorf("no refresh token; log in first")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refresh},
	}
	tok, err := c.postTokenForm(ctx, form)
	if err != nil {
		return err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refresh
	}
	c.storeToken(tok, "")
	return nil
}

func (c *Client) postTokenForm(ctx context.Context, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Token{}, replyError(resp)
	}
	var tr tokenReply
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("decode token reply: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("token reply had no access_token")
	}
	tok := Token{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if tr.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}

func (c *Client) storeToken(tok Token, username string) {
	c.mu.Lock()
	c.token = tok
	persist := c.persist
	c.mu.Unlock()
	if persist != nil {
		persist(tok, username)
	}
}

// Incident is the payload for one created incident.
type Incident struct {
	Body     string `json:"body"`
	Priority string `json:"prio"`
	Location string `json:"location"`
	TaskIDs  []int  `json:"task_ids"`
}

// CreateIncident posts one incident. On 401/403 it refreshes the access
// token and retries once.
func (c *Client) CreateIncident(ctx context.Context, inc Incident) error {
	resp, err := c.postIncident(ctx, inc)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp)
		if err := c.RefreshAccessToken(ctx); err != nil {
			return fmt.Errorf("refresh after %d: %w", resp.StatusCode, err)
		}
		resp, err = c.postIncident(ctx, inc)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return replyError(resp)
	}
	return nil
}

func (c *Client) postIncident(ctx context.Context, inc Incident) (*http.Response, error) {
	payload, err := json.Marshal(inc)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/incidents/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	c.mu.Unlock()
	return c.httpc.Do(req)
}

// TestConnection probes the service root and, when a token is loaded, an
// authenticated endpoint. It reports (server reachable, auth accepted).
func (c *Client) TestConnection(ctx context.Context) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false, false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, false
	}
	drain(resp)

	if !c.HasToken() {
		return true, false
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/incidents/", nil)
	if err != nil {
		return true, false
	}
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	c.mu.Unlock()
	resp, err = c.httpc.Do(req)
	if err != nil {
		return true, false
	}
	drain(resp)
	return true, resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden
}

func replyError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
	return &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestLoginWithPassword(t *testing.T) {
	var persisted Token
	var persistedUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "password" || r.Form.Get("username") != "op1" {
			t.Fatalf("form = %v", r.Form)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "acc", "refresh_token": "ref", "expires_in": 3600,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "client", time.Second, func(tok Token, user string) {
		persisted = tok
		persistedUser = user
	})
	if err := c.LoginWithPassword(testContext(t), "op1", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !c.HasToken() {
		t.Fatalf("no token after login")
	}
	if persisted.AccessToken != "acc" || persistedUser != "op1" {
		t.Fatalf("persist: %+v %q", persisted, persistedUser)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "client", time.Second, nil)
	err := c.LoginWithPassword(testContext(t), "op1", "wrong")
	de, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if de.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", de.Status)
	}
}

func TestCreateIncidentRetriesOn401(t *testing.T) {
	var incidentCalls, refreshCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt32(&refreshCalls, 1)
			json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh", "expires_in": 3600})
		case "/api/v2/incidents/":
			n := atomic.AddInt32(&incidentCalls, 1)
			if n == 1 {
				http.Error(w, "expired", http.StatusUnauthorized)
				return
			}
			if got := r.Header.Get("Authorization"); got != "Bearer fresh" {
				t.Errorf("auth header = %q", got)
			}
			var inc Incident
			if err := json.NewDecoder(r.Body).Decode(&inc); err != nil {
				t.Errorf("decode: %v", err)
			}
			if inc.Body == "" || len(inc.TaskIDs) != 2 {
				t.Errorf("incident = %+v", inc)
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("path = %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "client", time.Second, nil)
	c.SetToken(Token{AccessToken: "stale", RefreshToken: "ref"})
	err := c.CreateIncident(testContext(t), Incident{
		Body: "Bygningsbrand Hovedgaden 12 - ROIL1", Priority: "Kørsel 1",
		Location: "Hovedgaden 12", TaskIDs: []int{101, 102},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if atomic.LoadInt32(&incidentCalls) != 2 || atomic.LoadInt32(&refreshCalls) != 1 {
		t.Fatalf("calls: incidents=%d refresh=%d", incidentCalls, refreshCalls)
	}
}

func TestRefreshKeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh"})
	}))
	defer srv.Close()

	c := New(srv.URL, "client", time.Second, nil)
	c.SetToken(Token{AccessToken: "stale", RefreshToken: "keep-me"})
	if err := c.RefreshAccessToken(testContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	c.mu.Lock()
	refresh := c.token.RefreshToken
	c.mu.Unlock()
	if refresh != "keep-me" {
		t.Fatalf("refresh token = %q", refresh)
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	c := New("http://unused", "client", time.Second, nil)
	if err := c.RefreshAccessToken(testContext(t)); err == nil {
		t.Fatalf("expected error without refresh token")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	if (Token{}).Expired(now) != true {
		t.Fatalf("empty token should be expired")
	}
	if (Token{AccessToken: "a"}).Expired(now) {
		t.Fatalf("token without expiry should not be expired")
	}
	if (Token{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)}).Expired(now) != true {
		t.Fatalf("token inside the skew window should count as expired")
	}
	if (Token{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}).Expired(now) {
		t.Fatalf("fresh token reported expired")
	}
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/incidents/" && r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, "no", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "client", time.Second, nil)
	server, auth := c.TestConnection(testContext(t))
	if !server || auth {
		t.Fatalf("without token: server=%v auth=%v", server, auth)
	}
	c.SetToken(Token{AccessToken: "good"})
	server, auth = c.TestConnection(testContext(t))
	if !server || !auth {
		t.Fatalf("with token: server=%v auth=%v", server, auth)
	}
	c.SetToken(Token{AccessToken: "bad"})
	server, auth = c.TestConnection(testContext(t))
	if !server || auth {
		t.Fatalf("with bad token: server=%v auth=%v", server, auth)
	}
}

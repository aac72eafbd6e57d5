// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizely

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestFetchToken_PostsCredentialsInForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("grant_type") != "client_credentials" || form.Get("client_id") != "id" || form.Get("client_secret") != "secret" {
			t.Errorf("form = %v", form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tok, err := NewClient(srv.Client()).FetchToken(context.Background(), Credentials{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL})
	if err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if tok.ExpiresIn < 3500 || tok.ExpiresIn > 3600 {
		t.Errorf("expires_in = %d", tok.ExpiresIn)
	}
}

func TestFetchToken_RejectedIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client","error_description":"bad secret"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).FetchToken(context.Background(), Credentials{ClientID: "id", ClientSecret: "x", APIURL: srv.URL})
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError in chain: %v", err)
	}
	if ue.StatusCode != http.StatusUnauthorized || ue.Message != "bad secret" {
		t.Errorf("upstream = %+v", ue)
	}
}

func TestFetchToken_MissingCredentials(t *testing.T) {
	_, err := NewClient(nil).FetchToken(context.Background(), Credentials{ClientID: "id"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestCreateContent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/preview3/experimental/content" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"key":"abc"}`))
	}))
	defer srv.Close()

	item := ContentItem{ContentType: "OpalPage", DisplayName: "T", Status: StatusDraft}
	resp, err := NewClient(srv.Client()).CreateContent(context.Background(), srv.URL, "tok-1", item)
	if err != nil {
		t.Fatalf("CreateContent: %v", err)
	}
	if string(resp) != `{"key":"abc"}` {
		t.Errorf("response = %s", resp)
	}
	if got["contentType"] != "OpalPage" {
		t.Errorf("payload = %v", got)
	}
}

func TestCreateContent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"Validation failed","detail":"container is required"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).CreateContent(context.Background(), srv.URL, "Bearer t", ContentItem{})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.StatusCode != http.StatusBadRequest || ue.Message != "container is required" {
		t.Errorf("upstream = %+v", ue)
	}
	if len(ue.Raw) == 0 {
		t.Error("raw body should be kept")
	}
}

func TestContainers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "epi-single key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"data":{"BlankExperience":{"items":[
			{"_itemMetadata":{"key":"k1","displayName":"Home"}},
			{"_itemMetadata":{"key":"k2","displayName":""}}
		],"total":2}}}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.Client()).Containers(context.Background(), srv.URL, "key")
	if err != nil {
		t.Fatalf("Containers: %v", err)
	}
	want := []Container{{Key: "k1", DisplayName: "Home"}, {Key: "k2", DisplayName: "k2"}}
	if len(got) != len(want) {
		t.Fatalf("got %d containers", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("container[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGraphQL_ErrorsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"unknown field"}]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client()).GraphQL(context.Background(), srv.URL, "key", "{ x }", nil)
	var ge *GraphQLError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want GraphQLError", err)
	}
}

func TestGraphQL_NotConfigured(t *testing.T) {
	_, err := NewClient(nil).GraphQL(context.Background(), "", "", "{ x }", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestNewUpstreamError_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"nope"}`, "nope"},
		{"nested error", `{"error":{"message":"deep"}}`, "deep"},
		{"plain text", `gateway down`, "gateway down"},
		{"empty", ``, "Bad Gateway"},
		{"unknown shape", `{"foo":1}`, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newUpstreamError(http.StatusBadGateway, []byte(tt.body)).Message; got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

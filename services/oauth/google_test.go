package oauthsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleProvider_ExchangeCode(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form failed, %v", err)
		}
		if got := r.PostForm.Get("code"); got != "auth_code_1" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at_1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	infoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at_1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g_1","email":"jane@test.cm","name":"Jane Doe","picture":"https://lh3.example/pic"}`))
	}))
	defer infoSrv.Close()

	p := NewGoogleProvider("cid", "csecret", "http://localhost:8000/auth/callback")
	p.TokenURL = tokenSrv.URL
	p.UserInfoURL = infoSrv.URL

	ident, err := p.ExchangeCode(context.Background(), "auth_code_1")
	if err != nil {
		t.Fatalf("ExchangeCode() failed, %v", err)
	}
	if ident.Email != "jane@test.cm" || ident.Name != "Jane Doe" || ident.AvatarURL == "" {
		t.Errorf("ident = %+v", ident)
	}
}

func TestGoogleProvider_ExchangeCode_badCode(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenSrv.Close()

	p := NewGoogleProvider("cid", "csecret", "http://localhost:8000/auth/callback")
	p.TokenURL = tokenSrv.URL

	if _, err := p.ExchangeCode(context.Background(), "bad"); err == nil {
		t.Error("expected an error for a rejected code")
	}
}

func TestGoogleProvider_LoginURL(t *testing.T) {
	p := NewGoogleProvider("cid", "csecret", "http://localhost:8000/auth/callback")
	u := p.LoginURL("/dashboard")
	if !strings.HasPrefix(u, defaultAuthURL+"?") {
		t.Errorf("LoginURL = %q", u)
	}
	for _, want := range []string{"client_id=cid", "response_type=code", "state=%2Fdashboard"} {
		if !strings.Contains(u, want) {
			t.Errorf("LoginURL = %q; missing %q", u, want)
		}
	}
}

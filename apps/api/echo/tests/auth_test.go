package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/user"
	emailsvc "github.com/trezcool/kozi/services/email"
)

func Test_authAPI_signup(t *testing.T) {
	env := setup(t)
	createUser(t, env.usrRepo, "Taken", "taken@test.cm", "s3cr3t!pwd", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/auth/signup",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"email":            "this field is required",
				"password":         "this field is required",
				"password_confirm": "this field is required",
			}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/v1/auth/signup",
			body:     []byte(`{"name":"Jane","email":"jane@test.cm","password":"s3cr3t!pwd","password_confirm":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/signup",
			body:     []byte(`{"name":"Jane","email":"taken@test.cm","password":"s3cr3t!pwd","password_confirm":"s3cr3t!pwd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "signup ok", method: http.MethodPost, path: "/v1/auth/signup",
			body:     []byte(`{"name":"Jane","email":"jane@test.cm","password":"s3cr3t!pwd","password_confirm":"s3cr3t!pwd"}`),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp struct {
				Token string    `json:"token"`
				User  user.User `json:"user"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling response failed: %v", err)
			}
			if resp.Token == "" {
				t.Error("expected a token")
			}
			if resp.User.Role != user.RoleStudent || !resp.User.IsActive {
				t.Errorf("user = %+v; expected an active student", resp.User)
			}
		})
	}
}

func Test_authAPI_login(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "s3cr3t!pwd", user.RoleStudent, true)
	createUser(t, env.usrRepo, "Gone", "gone@test.cm", "s3cr3t!pwd", user.RoleStudent, false)

	tests := []httpTest{
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login",
			body:     []byte(`{"email":"nobody@test.cm","password":"s3cr3t!pwd"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body:     []byte(`{"email":"jane@test.cm","password":"nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCredentials.Error()}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/auth/login",
			body:     []byte(`{"email":"gone@test.cm","password":"s3cr3t!pwd"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: user.ErrAccountDeactivated.Error()}),
		},
		{
			name: "login ok", method: http.MethodPost, path: "/v1/auth/login",
			body:     []byte(`{"email":"jane@test.cm","password":"s3cr3t!pwd"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshalling response failed: %v", err)
			}
			if resp.Token == "" {
				t.Error("expected a token")
			}

			refreshed, _ := env.usrRepo.GetUserByID(context.Background(), usr.ID)
			if refreshed.LastLogin.IsZero() {
				t.Error("expected LastLogin to be bumped")
			}
		})
	}
}

var codeRegex = regexp.MustCompile(`code=([^&\s]+)`)

func sentLinkCode(t *testing.T) string {
	t.Helper()
	if len(emailsvc.SentMessages) == 0 {
		t.Fatal("expected an email to be sent")
	}
	msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	m := codeRegex.FindStringSubmatch(msg.BodyStr)
	if m == nil {
		t.Fatalf("no code in email body: %s", msg.BodyStr)
	}
	code, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatalf("unescaping code failed: %v", err)
	}
	return code
}

func Test_authAPI_magicLink(t *testing.T) {
	env := setup(t)

	// unknown email gets a pending student profile provisioned
	req, rec := newRequest(http.MethodPost, "/v1/auth/magic-link", []byte(`{"email":"new@test.cm","next":"/dashboard"}`))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}

	usr, err := env.usrRepo.GetUserByEmail(context.Background(), "new@test.cm")
	if err != nil {
		t.Fatalf("expected a provisioned profile, %v", err)
	}
	if usr.Name != "new" || usr.Role != user.RoleStudent {
		t.Errorf("usr = %+v; expected student named after the email local-part", usr)
	}

	// resend within the cooldown is throttled
	req, rec = newRequest(http.MethodPost, "/v1/auth/magic-link", []byte(`{"email":"new@test.cm"}`))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("code = %v; expected 429 within the cooldown", rec.Code)
	}

	// the emailed code signs the user in via the callback
	code := sentLinkCode(t)
	req, rec = newRequest(http.MethodGet, "/auth/callback?code="+url.QueryEscape(code)+"&next=/dashboard")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, core.Conf.FrontendBaseURL+"/dashboard#token=") {
		t.Errorf("Location = %q; expected a frontend redirect with the token in the fragment", loc)
	}

	// the code is one-shot: replaying it fails
	req, rec = newRequest(http.MethodGet, "/auth/callback?code="+url.QueryEscape(code))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %v", rec.Code)
	}
	loc = rec.Header().Get("Location")
	if !strings.Contains(loc, "auth_error=") {
		t.Errorf("Location = %q; expected an error redirect for a replayed code", loc)
	}
}

func Test_authAPI_callback_badInput(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "no code", path: "/auth/callback"},
		{name: "provider error", path: "/auth/callback?error=access_denied"},
		{name: "garbage magic code", path: "/auth/callback?code=lol.wtf"},
		{name: "oauth code but oauth unconfigured", path: "/auth/callback?code=some-google-code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			env.app.ServeHTTP(rec, req)
			if rec.Code != http.StatusFound {
				t.Fatalf("code = %v", rec.Code)
			}
			if loc := rec.Header().Get("Location"); !strings.Contains(loc, "auth_error=") {
				t.Errorf("Location = %q; expected an error redirect", loc)
			}
		})
	}
}

type fakeOAuth struct {
	ident user.ExternalIdentity
}

func (f fakeOAuth) LoginURL(state string) string {
	return "https://accounts.google.test/auth?state=" + url.QueryEscape(state)
}

func (f fakeOAuth) ExchangeCode(_ context.Context, code string) (user.ExternalIdentity, error) {
	return f.ident, nil
}

func Test_authAPI_oauthCallback(t *testing.T) {
	env := setup(t, setupOptions{
		oauth: fakeOAuth{ident: user.ExternalIdentity{Email: "g@test.cm", Name: "Goo Gle", AvatarURL: "https://pic"}},
	})

	// consent screen redirect
	req, rec := newRequest(http.MethodGet, "/v1/auth/google?next=/dashboard")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %v", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "state=%2Fdashboard") {
		t.Errorf("Location = %q; expected next to round-trip via state", loc)
	}

	// first callback provisions the profile
	req, rec = newRequest(http.MethodGet, "/auth/callback?code=google-code&state=/dashboard")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, core.Conf.FrontendBaseURL+"/dashboard#token=") {
		t.Errorf("Location = %q", loc)
	}

	usr, err := env.usrRepo.GetUserByEmail(context.Background(), "g@test.cm")
	if err != nil {
		t.Fatalf("expected a provisioned profile, %v", err)
	}
	if usr.Name != "Goo Gle" || usr.Role != user.RoleStudent || usr.AvatarURL == "" {
		t.Errorf("usr = %+v", usr)
	}

	// a second callback signs in the same profile, no duplicate row
	req, rec = newRequest(http.MethodGet, "/auth/callback?code=google-code")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("code = %v", rec.Code)
	}
	users, _ := env.usrRepo.FilterUsers(context.Background(), user.QueryFilter{Search: "g@test.cm"})
	if len(users) != 1 {
		t.Errorf("users = %d; expected exactly one profile per identity", len(users))
	}
}

func Test_authAPI_googleLogin_unconfigured(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/auth/google")
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %v; expected 503 when oauth is not configured", rec.Code)
	}
}

func Test_authAPI_passwordReset(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "0ldpwd!abc", user.RoleStudent, true)

	successMsg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	// unknown email: indistinguishable success, no email sent
	req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", []byte(`{"email":"nobody@test.cm"}`))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"success": successMsg})}, rec)
	if len(emailsvc.SentMessages) != 0 {
		t.Error("expected no email for an unknown address")
	}

	// known email gets the reset link
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset", []byte(`{"email":"jane@test.cm"}`))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v", rec.Code)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatal("expected a reset email")
	}
	body := emailsvc.SentMessages[0].BodyStr
	uid := regexp.MustCompile(`uid=([^&\s]+)`).FindStringSubmatch(body)
	token := regexp.MustCompile(`token=([^&\s]+)`).FindStringSubmatch(body)
	if uid == nil || token == nil {
		t.Fatalf("no uid/token in email body: %s", body)
	}
	tokenVal, _ := url.QueryUnescape(token[1])

	// confirm with the emailed token
	payload := marchallObj(t, map[string]string{
		"uid":              uid[1],
		"token":            tokenVal,
		"password":         "n3wpwd!abc",
		"password_confirm": "n3wpwd!abc",
	})
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset-confirm", payload)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"success": "Password has been reset with the new password."}),
	}, rec)

	refreshed, _ := env.usrRepo.GetUserByID(context.Background(), usr.ID)
	if err := refreshed.CheckPassword("n3wpwd!abc"); err != nil {
		t.Error("expected the new password to be set")
	}

	// the token is invalidated by the password change
	req, rec = newRequest(http.MethodPost, "/v1/auth/password-reset-confirm", payload)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: user.ErrInvalidCode.Error()}),
	}, rec)
}

func Test_authAPI_updatePassword(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "0ldpwd!abc", user.RoleStudent, true)
	token := getToken(t, usr)

	// no token
	req, rec := newRequest(http.MethodPost, "/v1/auth/update-password", []byte(`{"password":"n3wpwd!abc","password_confirm":"n3wpwd!abc"}`))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/auth/update-password", token, []byte(`{"password":"n3wpwd!abc","password_confirm":"n3wpwd!abc"}`))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"success": "Password updated."}),
	}, rec)

	refreshed, _ := env.usrRepo.GetUserByID(context.Background(), usr.ID)
	if err := refreshed.CheckPassword("n3wpwd!abc"); err != nil {
		t.Error("expected the new password to be set")
	}
}

func Test_authAPI_tokenRefresh(t *testing.T) {
	env := setup(t)
	usr := createUser(t, env.usrRepo, "Jane", "jane@test.cm", "s3cr3t!pwd", user.RoleStudent, true)

	req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", getToken(t, usr))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling response failed: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a fresh token")
	}
}

func Test_authAPI_passwordStrength(t *testing.T) {
	env := setup(t)

	tests := []struct {
		pwd      string
		score    int
		label    string
		progress int
	}{
		{pwd: "", score: 0, label: "", progress: 0},
		{pwd: "abc", score: 1, label: "Very weak", progress: 20},
		{pwd: "abcdefgh", score: 2, label: "Weak", progress: 40},
		{pwd: "Abcdefgh1", score: 4, label: "Good", progress: 80},
		{pwd: "Abcdefgh1!", score: 5, label: "Strong", progress: 100},
	}
	for _, tt := range tests {
		req, rec := newRequest(http.MethodGet, "/v1/auth/password-strength?password="+url.QueryEscape(tt.pwd))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{"score": tt.score, "label": tt.label, "progress": tt.progress}),
		}, rec)
	}
}

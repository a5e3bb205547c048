package user

import (
	"strings"
	"testing"
	"time"
)

func TestMakeVerifyToken(t *testing.T) {
	timeout := 3 * 24 * time.Hour

	now := time.Now().UTC()
	usr := User{
		ID:        "usr_1",
		Name:      "T",
		Email:     "t@test.cm",
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	_ = usr.SetPassword("pwd")

	validToken, err := MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	NowFunc = time.Now // reset

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.usr, tt.token, timeout); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// consuming a token (last login bump or password change) invalidates it
func TestTokenIsOneShot(t *testing.T) {
	timeout := 3 * 24 * time.Hour
	usr := User{ID: "usr_1", Email: "t@test.cm"}
	_ = usr.SetPassword("pwd")

	token, err := MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	if err = verifyToken(usr, token, timeout); err != nil {
		t.Fatalf("verifyToken() error = %v", err)
	}

	loggedIn := usr
	loggedIn.LastLogin = time.Now().UTC()
	if err = verifyToken(loggedIn, token, timeout); err != errInvalidToken {
		t.Errorf("verifyToken() error = %v; expected the login to invalidate the token", err)
	}

	changed := usr
	_ = changed.SetPassword("new-pwd")
	if err = verifyToken(changed, token, timeout); err != errInvalidToken {
		t.Errorf("verifyToken() error = %v; expected the password change to invalidate the token", err)
	}
}

func TestLoginCode(t *testing.T) {
	usr := User{ID: "usr_1", Email: "t@test.cm"}
	_ = usr.SetPassword("pwd")

	code, err := MakeLoginCode(usr)
	if err != nil {
		t.Fatalf("MakeLoginCode() failed: %v", err)
	}
	if !strings.Contains(code, ".") {
		t.Fatalf("code = %q; expected a '.' separator", code)
	}

	id, token, err := splitLoginCode(code)
	if err != nil {
		t.Fatalf("splitLoginCode() error = %v", err)
	}
	if id != usr.ID {
		t.Errorf("id = %q; want %q", id, usr.ID)
	}
	if err = verifyToken(usr, token, time.Hour); err != nil {
		t.Errorf("verifyToken() error = %v", err)
	}

	for _, bad := range []string{"", "nodot", "!!!.token"} {
		if _, _, err = splitLoginCode(bad); err != errInvalidCode {
			t.Errorf("splitLoginCode(%q) error = %v, wantErr %v", bad, err, errInvalidCode)
		}
	}
}

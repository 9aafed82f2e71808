// Package main provides a CI-friendly smoke test for a running auth sidecar.
//
// It validates:
//   - signup creates an account
//   - signin sets the session cookie
//   - the cookie resolves via GET /session
//   - a bearer header resolves the same session
//   - signout clears the cookie and revokes the session
//   - wrong credentials get the generic 401
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCookieName = "better-auth.session_token"
	maxReadBytes      = 1 << 20 // 1MiB
)

type smokeClient struct {
	base    string
	cookie  string
	http    *http.Client
	timeout time.Duration
	verbose bool
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type signinBody struct {
	Success bool `json:"success"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Session struct {
		ID        string    `json:"id"`
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"session"`
}

type sessionBody struct {
	Session struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	} `json:"session"`
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func main() {
	var (
		baseURL  = flag.String("url", "http://127.0.0.1:3001", "Sidecar base URL including any auth base path")
		cookie   = flag.String("cookie", defaultCookieName, "Session cookie name")
		email    = flag.String("email", "", "Account email (default: a fresh random address)")
		password = flag.String("password", "smoke-test passphrase 42", "Account password")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if *email == "" {
		*email = "smoke-" + uuid.NewString()[:8] + "@example.com"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookie jar: %v", err)
	}
	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		cookie:  *cookie,
		http:    &http.Client{Jar: jar},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	creds := map[string]string{"email": *email, "password": *password}

	status, _ := c.mustDo(root, http.MethodPost, "/signup", creds, "")
	if status != http.StatusCreated {
		fatalf("signup: status=%d want=%d", status, http.StatusCreated)
	}

	status, body := c.mustDo(root, http.MethodPost, "/signin", creds, "")
	if status != http.StatusOK {
		fatalf("signin: status=%d want=%d", status, http.StatusOK)
	}
	var in signinBody
	mustDecode(body, &in)
	if !in.Success || in.Session.ID == "" || in.User.Email != *email {
		fatalf("signin: unexpected body %s", body)
	}
	if time.Until(in.Session.ExpiresAt) <= 0 {
		fatalf("signin: session already expired at %s", in.Session.ExpiresAt)
	}

	token := c.mustCookie()
	if c.verbose {
		fmt.Printf("signed in: user=%s session=%s\n", in.User.ID, in.Session.ID)
	}

	// The jar carries the cookie here unless the server marked it Secure on plain HTTP.
	status, body = c.mustDo(root, http.MethodGet, "/session", nil, "")
	if status != http.StatusOK {
		fatalf("session via cookie: status=%d body=%s", status, body)
	}
	var sess sessionBody
	mustDecode(body, &sess)
	if sess.Session.ID != in.Session.ID || sess.User.ID != in.User.ID {
		fatalf("session via cookie: resolved %s/%s want %s/%s", sess.Session.ID, sess.User.ID, in.Session.ID, in.User.ID)
	}

	status, body = c.mustDo(root, http.MethodGet, "/session", nil, token)
	if status != http.StatusOK {
		fatalf("session via bearer: status=%d body=%s", status, body)
	}

	status, _ = c.mustDo(root, http.MethodPost, "/signout", nil, token)
	if status != http.StatusOK {
		fatalf("signout: status=%d want=%d", status, http.StatusOK)
	}

	status, body = c.mustDo(root, http.MethodGet, "/session", nil, token)
	c.mustErrorCode("session after signout", status, body, http.StatusUnauthorized, "unauthenticated")

	wrong := map[string]string{"email": *email, "password": *password + "x"}
	status, body = c.mustDo(root, http.MethodPost, "/signin", wrong, "")
	c.mustErrorCode("signin wrong password", status, body, http.StatusUnauthorized, "invalid_credentials")

	fmt.Println("PASS: signup, signin, session (cookie+bearer), signout, revocation, generic 401")
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func (c *smokeClient) mustDo(parent context.Context, method, path string, payload any, bearer string) (int, []byte) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			fatalf("marshal %s %s: %v", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		fatalf("read %s %s: %v", method, path, err)
	}
	if c.verbose {
		fmt.Printf("%s %s -> %d %s\n", method, path, resp.StatusCode, b)
	}
	return resp.StatusCode, b
}

func (c *smokeClient) mustCookie() string {
	u, err := url.Parse(c.base)
	if err != nil {
		fatalf("parse base url: %v", err)
	}
	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == c.cookie && ck.Value != "" {
			return ck.Value
		}
	}
	fatalf("signin: cookie %q not set (on plain HTTP run the sidecar with SIDECAR_COOKIE_SECURE=false)", c.cookie)
	return ""
}

func (c *smokeClient) mustErrorCode(step string, status int, body []byte, wantStatus int, wantCode string) {
	if status != wantStatus {
		fatalf("%s: status=%d want=%d body=%s", step, status, wantStatus, body)
	}
	var eb errorBody
	mustDecode(body, &eb)
	if eb.Error.Code != wantCode {
		fatalf("%s: code=%q want=%q", step, eb.Error.Code, wantCode)
	}
}

func mustDecode(b []byte, v any) {
	if err := json.Unmarshal(b, v); err != nil {
		fatalf("decode %s: %v", b, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}

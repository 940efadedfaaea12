package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"utkarsh/portal/internal/models"
	"utkarsh/portal/internal/security"
	"utkarsh/portal/internal/session"
)

var epoch = time.Unix(1_700_000_000, 0)

type stubRefresher struct {
	out     session.Token
	changed bool
	err     error
	calls   int
}

func (s *stubRefresher) Refresh(_ context.Context, tok session.Token) (session.Token, bool, error) {
	s.calls++
	if s.err != nil {
		return tok, false, s.err
	}
	if !s.changed {
		return tok, false, nil
	}
	return s.out, true, nil
}

type stubActivity struct{ touched int }

func (s *stubActivity) Touch(context.Context, session.Token, string, string) error {
	s.touched++
	return nil
}

func testToken() session.Token {
	return session.Token{
		User: session.UserClaims{
			Version: session.ClaimsVersion,
			ID:      "u1",
			Group:   models.UserGroupStudent,
		},
		SessionID:          "s1",
		AccessTokenExpires: epoch.Add(time.Hour).Unix(),
		SignedInAt:         epoch.Unix(),
	}
}

func newRouter(codec *session.Codec, refresher *stubRefresher, activity *stubActivity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoadSession(SessionOptions{
		Codec:     codec,
		Refresher: refresher,
		Activity:  activity,
		Cookie:    Cookie{Name: "portal.session", HTTPOnly: true},
		Now:       func() time.Time { return epoch.Add(time.Minute) },
		Logger:    zerolog.New(io.Discard),
	}))
	r.GET("/open", func(c *gin.Context) {
		tok, ok := CurrentToken(c)
		c.JSON(http.StatusOK, gin.H{"signedIn": ok, "error": tok.Error})
	})
	protected := r.Group("/p", RequireSession("/login"))
	protected.GET("", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	admin := protected.Group("/admin", RequireAdmin(1))
	admin.GET("", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func withCookie(t *testing.T, codec *session.Codec, req *http.Request, tok session.Token) {
	t.Helper()
	raw, err := codec.Encode(tok)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "portal.session", Value: raw})
}

func TestRequireSessionWithoutCookie(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	r := newRouter(codec, &stubRefresher{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["signIn"] != "/login" || body["error"] != "unauthenticated" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestValidSessionPassesWithoutRewrite(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	refresher := &stubRefresher{}
	r := newRouter(codec, refresher, nil)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	withCookie(t, codec, req, testToken())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if refresher.calls != 1 {
		t.Fatalf("refresh loop must run once per request")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("unchanged session must not be rewritten")
	}
}

func TestRenewedSessionRewritesCookie(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	renewed := testToken()
	renewed.AccessToken = "new"
	renewed.AccessTokenExpires = epoch.Add(25 * time.Hour).Unix()
	refresher := &stubRefresher{out: renewed, changed: true}
	activity := &stubActivity{}
	r := newRouter(codec, refresher, activity)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	withCookie(t, codec, req, testToken())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "portal.session" {
		t.Fatalf("expected session cookie to be rewritten, got %v", cookies)
	}
	decoded, err := codec.Decode(cookies[0].Value, epoch.Add(time.Minute))
	if err != nil || decoded.AccessToken != "new" {
		t.Fatalf("rewritten cookie must carry the renewed token (err=%v)", err)
	}
	if activity.touched != 1 {
		t.Fatalf("renewal must record session activity")
	}
}

func TestErroredSessionIsUnauthenticated(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	flagged := testToken()
	flagged.Error = session.RefreshAccessTokenError
	r := newRouter(codec, &stubRefresher{out: flagged, changed: true}, &stubActivity{})

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	withCookie(t, codec, req, testToken())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	withCookie(t, codec, req, testToken())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), string(session.RefreshAccessTokenError)) {
		t.Fatalf("open route must see the flagged token, got %s", w.Body.String())
	}
}

func TestBearerEnvelope(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	r := newRouter(codec, &stubRefresher{}, nil)

	raw, err := codec.Encode(testToken())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestRenewedBearerEnvelopeIsExposed(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	renewed := testToken()
	renewed.AccessToken = "new"
	refresher := &stubRefresher{out: renewed, changed: true}
	r := newRouter(codec, refresher, &stubActivity{})
	r.GET("/envelope", func(c *gin.Context) {
		raw, ok := RenewedEnvelope(c)
		c.JSON(http.StatusOK, gin.H{"renewed": ok, "sessionToken": raw})
	})

	raw, err := codec.Encode(testToken())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/envelope", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("bearer sessions must not get a cookie")
	}
	var body struct {
		Renewed      bool   `json:"renewed"`
		SessionToken string `json:"sessionToken"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || !body.Renewed {
		t.Fatalf("expected renewed envelope, got %s (err=%v)", w.Body.String(), err)
	}
	decoded, err := codec.Decode(body.SessionToken, epoch.Add(time.Minute))
	if err != nil || decoded.AccessToken != "new" {
		t.Fatalf("envelope must carry the renewed token (err=%v)", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/envelope", nil)
	withCookie(t, codec, req, testToken())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if strings.Contains(w.Body.String(), `"renewed":true`) {
		t.Fatalf("cookie sessions are rewritten in place, got %s", w.Body.String())
	}
}

func TestTamperedCookieIsCleared(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	r := newRouter(codec, &stubRefresher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	withCookie(t, session.NewCodec("other", 30*24*time.Hour), req, testToken())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"signedIn":false`) {
		t.Fatalf("tampered envelope must be ignored, got %s", w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got %v", cookies)
	}
}

func TestRefreshStoreFailure(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	r := newRouter(codec, &stubRefresher{err: errors.New("db down")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	withCookie(t, codec, req, testToken())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	codec := session.NewCodec("secret", 30*24*time.Hour)
	r := newRouter(codec, &stubRefresher{}, nil)

	cases := []struct {
		admin *session.AdminClaims
		want  int
	}{
		{nil, http.StatusForbidden},
		{&session.AdminClaims{Permissions: 0}, http.StatusForbidden},
		{&session.AdminClaims{Permissions: 1}, http.StatusNoContent},
	}
	for _, tc := range cases {
		tok := testToken()
		tok.User.Admin = tc.admin
		req := httptest.NewRequest(http.MethodGet, "/p/admin", nil)
		withCookie(t, codec, req, tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("admin %+v: expected %d, got %d", tc.admin, tc.want, w.Code)
		}
	}
}

func TestCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CSRF("csrf-secret", "portal.csrf"))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, err := security.NewCSRFToken("csrf-secret")
	if err != nil {
		t.Fatalf("csrf token: %v", err)
	}
	forged, _ := security.NewCSRFToken("other")

	cases := []struct {
		name   string
		method string
		header string
		cookie string
		want   int
	}{
		{"safe method", http.MethodGet, "", "", http.StatusNoContent},
		{"valid", http.MethodPost, token, token, http.StatusNoContent},
		{"missing header", http.MethodPost, "", token, http.StatusForbidden},
		{"missing cookie", http.MethodPost, token, "", http.StatusForbidden},
		{"mismatch", http.MethodPost, token, forged, http.StatusForbidden},
		{"forged pair", http.MethodPost, forged, forged, http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/x", nil)
		if tc.header != "" {
			req.Header.Set(security.HeaderCSRFToken, tc.header)
		}
		if tc.cookie != "" {
			req.AddCookie(&http.Cookie{Name: "portal.csrf", Value: tc.cookie})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"no origins configured", nil, "https://evil.example", false},
		{"listed origin", []string{"https://portal.iiita.ac.in"}, "https://portal.iiita.ac.in", true},
		{"unlisted origin", []string{"https://portal.iiita.ac.in"}, "https://evil.example", false},
	}
	for _, tc := range cases {
		r := gin.New()
		r.Use(CORS(tc.origins))
		r.GET("/csrf", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"csrfToken": "nonce.mac"}) })

		req := httptest.NewRequest(http.MethodGet, "/csrf", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		acao := rec.Header().Get("Access-Control-Allow-Origin")
		if tc.allowed {
			if acao != tc.origin || rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Fatalf("%s: expected credentialed CORS for %s, got %q", tc.name, tc.origin, acao)
			}
			continue
		}
		if acao != "" || strings.Contains(rec.Body.String(), "nonce.mac") {
			t.Fatalf("%s: cross-origin read allowed (status %d, origin %q)", tc.name, rec.Code, acao)
		}
	}

	r := gin.New()
	r.Use(CORS(nil))
	r.GET("/csrf", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "http://api.local/csrf", nil)
	req.Header.Set("Origin", "http://api.local")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("same-origin request must pass, got %d", rec.Code)
	}
}

package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/toolify/internal/auth"
	"github.com/desertthunder/toolify/internal/formatter"
	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/server"
	"github.com/desertthunder/toolify/internal/session"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
	th "github.com/desertthunder/toolify/internal/testing"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// fakeAuth logs every callback in and keeps tokens valid unless userErr is set.
type fakeAuth struct {
	userErr   error
	serverErr error
}

func (f *fakeAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) Exchange(ctx context.Context, code string) (auth.TokenState, error) {
	return auth.TokenState{
		User:         auth.Token{Value: "user-" + code, Expiry: time.Now().Add(time.Hour)},
		RefreshToken: "refresh",
	}, nil
}

func (f *fakeAuth) EnsureUserToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error) {
	if f.userErr != nil {
		return auth.TokenState{}, f.userErr
	}
	return st, nil
}

func (f *fakeAuth) EnsureServerToken(ctx context.Context, st auth.TokenState) (auth.TokenState, error) {
	if f.serverErr != nil {
		return st, f.serverErr
	}
	st.Server = auth.Token{Value: "server", Expiry: time.Now().Add(time.Hour)}
	return st, nil
}

// client drives the app in process and carries the session cookie between requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, cat *th.MockCatalog, fa *fakeAuth) *client {
	t.Helper()
	app, err := New(Options{
		Engine:   tasks.NewPlaylistEngine(cat, nil),
		Auth:     fa,
		Tokens:   fa,
		Sessions: session.New(session.Options{}),
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &client{t: t, handler: app.Routes(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) login() {
	c.t.Helper()
	rec := c.get("/login")
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		c.t.Fatalf("bad login redirect: %v", err)
	}
	rec = c.get("/callback?code=abc&state=" + url.QueryEscape(u.Query().Get("state")))
	if rec.Header().Get("Location") != "/" {
		c.t.Fatalf("callback redirected to %q", rec.Header().Get("Location"))
	}
}

func expectRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != want {
		t.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, want ...string) {
	t.Helper()
	body := rec.Body.String()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("body does not contain %q", w)
		}
	}
}

func analyzablePlaylist(id string, n int) (models.Playlist, []models.PlaylistItem) {
	var p models.Playlist
	p.ID = id
	p.Name = "Road Trip"
	p.Tracks.Total = n
	return p, th.NumberedItems(n)
}

func TestPages(t *testing.T) {
	c := newClient(t, &th.MockCatalog{}, &fakeAuth{})

	t.Run("home", func(t *testing.T) {
		rec := c.get("/")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		expectBody(t, rec, "Login with Spotify", "2024")
		if rec.Header().Get(server.RequestIDHeader) == "" {
			t.Error("missing request id header")
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		expectRedirect(t, c.get("/nope"), "/not-found")
		if rec := c.get("/not-found"); rec.Code != http.StatusNotFound {
			t.Errorf("/not-found status = %d", rec.Code)
		}
	})

	t.Run("error page", func(t *testing.T) {
		rec := c.get("/error")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
		expectBody(t, rec, "Something went wrong")
	})

	t.Run("standard middleware", func(t *testing.T) {
		for _, target := range []string{"/", "/static/style.css", "/nope"} {
			rec := c.get(target)
			if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
				t.Errorf("%s: X-Content-Type-Options = %q", target, got)
			}
			if got := rec.Header().Get("X-Frame-Options"); got != "deny" {
				t.Errorf("%s: X-Frame-Options = %q", target, got)
			}
			if rec.Header().Get(server.RequestIDHeader) == "" {
				t.Errorf("%s: missing request id header", target)
			}
		}
	})

	t.Run("static files", func(t *testing.T) {
		if rec := c.get("/static/style.css"); rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestBackup(t *testing.T) {
	playlists := make([]models.SimplePlaylist, 60)
	for i := range playlists {
		playlists[i] = models.SimplePlaylist{ID: fmt.Sprintf("pl%d", i), Name: fmt.Sprintf("Mix %d", i)}
	}

	t.Run("logged out shows login prompt", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{}, &fakeAuth{})
		rec := c.get("/backup")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		expectBody(t, rec, "To Backup your Playlists")
	})

	t.Run("first page", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{Playlists: playlists, Saved: th.NumberedItems(4)}, &fakeAuth{})
		c.login()
		rec := c.get("/backup")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		expectBody(t, rec, "Liked Songs", "Mix 0", "Mix 49", "/download?playlist=saved", "/backup?page=2")
	})

	t.Run("out of range pages", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{Playlists: playlists}, &fakeAuth{})
		c.login()
		expectRedirect(t, c.get("/backup?page=3"), "/not-found")
		expectRedirect(t, c.get("/backup?page=abc"), "/not-found")
	})

	t.Run("authorization failure", func(t *testing.T) {
		fa := &fakeAuth{}
		c := newClient(t, &th.MockCatalog{Playlists: playlists}, fa)
		c.login()
		fa.userErr = fmt.Errorf("%w: refresh", shared.ErrAuthorizationFailed)

		expectRedirect(t, c.get("/backup"), "/")
		rec := c.get("/")
		expectBody(t, rec, server.AuthorizationFailedMessage, "Login with Spotify")
	})
}

func TestDownload(t *testing.T) {
	cat := &th.MockCatalog{
		Saved:         th.NumberedItems(2),
		PlaylistItems: map[string][]models.PlaylistItem{"pl1": th.NumberedItems(3)},
	}

	t.Run("missing playlist", func(t *testing.T) {
		c := newClient(t, cat, &fakeAuth{})
		expectRedirect(t, c.get("/download"), "/not-found")
	})

	t.Run("logged out", func(t *testing.T) {
		c := newClient(t, cat, &fakeAuth{})
		expectRedirect(t, c.get("/download?playlist=pl1"), "/backup")
	})

	t.Run("saved tracks", func(t *testing.T) {
		c := newClient(t, cat, &fakeAuth{})
		c.login()
		rec := c.get("/download?playlist=saved")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, formatter.ExportFilename(fixedNow)) {
			t.Errorf("Content-Disposition = %q", got)
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
		}
		if !strings.HasPrefix(lines[0], "Name,Added at,url,spotify_id") {
			t.Errorf("header = %q", lines[0])
		}
	})

	t.Run("playlist", func(t *testing.T) {
		c := newClient(t, cat, &fakeAuth{})
		c.login()
		rec := c.get("/download?playlist=pl1")
		if n := strings.Count(strings.TrimSpace(rec.Body.String()), "\n"); n != 3 {
			t.Errorf("got %d rows, want 3", n)
		}
	})
}

// brokenConn accepts headers but fails every body write.
type brokenConn struct {
	*httptest.ResponseRecorder
}

func (b brokenConn) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestDownloadWriteFailure(t *testing.T) {
	var logs bytes.Buffer
	fa := &fakeAuth{}
	sessions := session.New(session.Options{})
	app, err := New(Options{
		Engine:   tasks.NewPlaylistEngine(&th.MockCatalog{Saved: th.NumberedItems(2)}, nil),
		Auth:     fa,
		Tokens:   fa,
		Sessions: sessions,
		Logger:   shared.NewLogger(&logs),
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, err := sessions.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sessions.SetTokens(ctx, auth.TokenState{
		User:         auth.Token{Value: "user", Expiry: time.Now().Add(time.Hour)},
		RefreshToken: "refresh",
	})
	token, _, err := sessions.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/download?playlist=saved", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	app.Routes().ServeHTTP(brokenConn{httptest.NewRecorder()}, req)

	if !strings.Contains(logs.String(), "write download") || !strings.Contains(logs.String(), "connection reset by peer") {
		t.Errorf("write failure not logged:\n%s", logs.String())
	}
}

func TestAnalyze(t *testing.T) {
	const id = "37i9dQZF1DXcBWIGoYBM5M"
	link := "https://open.spotify.com/playlist/" + id + "?si=abc"

	t.Run("form lists the user's playlists", func(t *testing.T) {
		var p models.SimplePlaylist
		p.Name = "Morning"
		p.ExternalURLs.Spotify = "https://open.spotify.com/playlist/" + id
		c := newClient(t, &th.MockCatalog{Playlists: []models.SimplePlaylist{p}}, &fakeAuth{})
		c.login()

		rec := c.get("/analyze-playlist")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		expectBody(t, rec, "Morning")
	})

	t.Run("works without login", func(t *testing.T) {
		meta, items := analyzablePlaylist(id, 12)
		cat := &th.MockCatalog{
			PlaylistMeta:  map[string]models.Playlist{id: meta},
			PlaylistItems: map[string][]models.PlaylistItem{id: items},
		}
		c := newClient(t, cat, &fakeAuth{})

		rec := c.get("/analyzed?playlist=" + url.QueryEscape(link))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, location %q", rec.Code, rec.Header().Get("Location"))
		}
		expectBody(t, rec, "Road Trip", "2000s", "Artist artist", "50")
	})

	t.Run("empty link", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{}, &fakeAuth{})
		expectRedirect(t, c.get("/analyzed"), "/analyze-playlist")
	})

	messages := []struct {
		name string
		cat  *th.MockCatalog
		link string
		want string
	}{
		{"invalid link", &th.MockCatalog{}, "https://example.com/nothing", "Invalid Spotify Playlist URL"},
		{"private playlist", &th.MockCatalog{PlaylistErr: fmt.Errorf("%w (status 404)", shared.ErrNotFound)}, link, "Unable to access Playlist"},
		{"too short", func() *th.MockCatalog {
			meta, items := analyzablePlaylist(id, 9)
			return &th.MockCatalog{
				PlaylistMeta:  map[string]models.Playlist{id: meta},
				PlaylistItems: map[string][]models.PlaylistItem{id: items},
			}
		}(), link, "Playlist too short. Consider adding more songs."},
	}

	for _, tc := range messages {
		t.Run(tc.name, func(t *testing.T) {
			c := newClient(t, tc.cat, &fakeAuth{})
			expectRedirect(t, c.get("/analyzed?playlist="+url.QueryEscape(tc.link)), "/analyze-playlist")

			rec := c.get("/analyze-playlist")
			expectBody(t, rec, tc.want)
			if again := c.get("/analyze-playlist"); strings.Contains(again.Body.String(), tc.want) {
				t.Error("flash message shown twice")
			}
		})
	}

	t.Run("upstream failure", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{PlaylistErr: fmt.Errorf("%w (status 500)", shared.ErrUpstream)}, &fakeAuth{})
		expectRedirect(t, c.get("/analyzed?playlist="+url.QueryEscape(link)), "/error")
	})

	t.Run("server token failure", func(t *testing.T) {
		fa := &fakeAuth{serverErr: fmt.Errorf("%w: client credentials", shared.ErrUpstreamUnavailable)}
		c := newClient(t, &th.MockCatalog{}, fa)
		expectRedirect(t, c.get("/analyzed?playlist="+url.QueryEscape(link)), "/error")
	})
}

func csvUpload(t *testing.T, filename, contentType, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	io.WriteString(part, body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/restore", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func exportedCSV(t *testing.T, n int) string {
	t.Helper()
	data, err := formatter.ExportToCSV(th.NumberedItems(n))
	if err != nil {
		t.Fatalf("ExportToCSV() error = %v", err)
	}
	return string(data)
}

func TestRestore(t *testing.T) {
	t.Run("logged out form", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{}, &fakeAuth{})
		rec := c.get("/restore")
		expectBody(t, rec, "To Restore a Playlist")
	})

	t.Run("restores an exported file", func(t *testing.T) {
		cat := &th.MockCatalog{User: models.User{ID: "user1"}}
		c := newClient(t, cat, &fakeAuth{})
		c.login()

		req := csvUpload(t, "backup.csv", "text/csv", exportedCSV(t, 150), map[string]string{"name": "Old Mix", "public": "on"})
		expectRedirect(t, c.do(req), "/restore")

		if len(cat.Created) != 1 || cat.Created[0] != "Old Mix" {
			t.Errorf("created = %v", cat.Created)
		}
		if len(cat.AddedURIs) != 2 || len(cat.AddedURIs[0]) != 100 || len(cat.AddedURIs[1]) != 50 {
			t.Errorf("unexpected batches %d", len(cat.AddedURIs))
		}

		rec := c.get("/restore")
		expectBody(t, rec, "Old Mix", "150 of 150 tracks added")
		if again := c.get("/restore"); strings.Contains(again.Body.String(), "150 of 150") {
			t.Error("summary shown twice")
		}
	})

	t.Run("default name", func(t *testing.T) {
		cat := &th.MockCatalog{User: models.User{ID: "user1"}}
		c := newClient(t, cat, &fakeAuth{})
		c.login()

		c.do(csvUpload(t, "backup.csv", "application/vnd.ms-excel", exportedCSV(t, 3), nil))
		if len(cat.Created) != 1 || !strings.HasPrefix(cat.Created[0], "Restored ") {
			t.Errorf("created = %v", cat.Created)
		}
	})

	t.Run("partial failure keeps summary", func(t *testing.T) {
		cat := &th.MockCatalog{
			User: models.User{ID: "user1"},
			AddTracksErr: func(call int) error {
				if call == 1 {
					return fmt.Errorf("%w (status 502)", shared.ErrUpstream)
				}
				return nil
			},
		}
		c := newClient(t, cat, &fakeAuth{})
		c.login()

		expectRedirect(t, c.do(csvUpload(t, "backup.csv", "text/csv", exportedCSV(t, 250), nil)), "/restore")
		rec := c.get("/restore")
		expectBody(t, rec, "100 of 250 tracks added", "The restore stopped after 100 of 250 tracks.")
	})

	rejects := []struct {
		name        string
		filename    string
		contentType string
		body        string
		want        string
	}{
		{"wrong extension", "backup.txt", "text/csv", "url\n", "Only .csv files can be restored."},
		{"wrong type", "backup.csv", "application/json", "url\n", "The uploaded file is not a CSV file."},
		{"empty file", "backup.csv", "text/csv", "", "The CSV file is empty."},
		{"no id column", "backup.csv", "text/csv", "Name,Album\na,b\n", "The CSV file needs a url or spotify_id column."},
	}

	for _, tc := range rejects {
		t.Run(tc.name, func(t *testing.T) {
			cat := &th.MockCatalog{}
			c := newClient(t, cat, &fakeAuth{})
			c.login()

			expectRedirect(t, c.do(csvUpload(t, tc.filename, tc.contentType, tc.body, nil)), "/restore")
			expectBody(t, c.get("/restore"), tc.want)
			if len(cat.Created) != 0 {
				t.Error("playlist created for a rejected upload")
			}
		})
	}

	t.Run("logged out upload", func(t *testing.T) {
		c := newClient(t, &th.MockCatalog{}, &fakeAuth{})
		expectRedirect(t, c.do(csvUpload(t, "backup.csv", "text/csv", exportedCSV(t, 1), nil)), "/restore")
		expectBody(t, c.get("/restore"), "Log in to restore a playlist.")
	})
}

func TestLogout(t *testing.T) {
	c := newClient(t, &th.MockCatalog{}, &fakeAuth{})
	c.login()
	expectBody(t, c.get("/"), "Back up playlists")

	expectRedirect(t, c.get("/logout"), "/")
	expectBody(t, c.get("/"), "Login with Spotify")
}

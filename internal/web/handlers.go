package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/desertthunder/toolify/internal/formatter"
	"github.com/desertthunder/toolify/internal/models"
	"github.com/desertthunder/toolify/internal/server"
	"github.com/desertthunder/toolify/internal/session"
	"github.com/desertthunder/toolify/internal/shared"
	"github.com/desertthunder/toolify/internal/tasks"
)

const (
	restoreSummaryKey = "restore_summary"
	// maxFormOverhead is the multipart framing allowed on top of the file itself.
	maxFormOverhead = 1 << 20
)

// playlistOption is a playlist the analyze form offers as a shortcut.
type playlistOption struct {
	Name   string
	Link   string
	Image  string
	Tracks int
}

// RestoreSummary is kept in the session between a restore and the page that reports it.
type RestoreSummary struct {
	Name    string
	URL     string
	Added   int
	Total   int
	Skipped int
	Failed  bool
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	data := a.newTemplateData(r)
	data.Flash = a.sessions.PopFlash(r.Context(), session.FlashAuthorization)
	if data.Flash == "" {
		data.Flash = a.sessions.PopFlash(r.Context(), session.FlashNotice)
	}
	a.render(w, r, http.StatusOK, "index", data)
}

func (a *App) backup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := a.newTemplateData(r)
	if !data.LoggedIn {
		data.Heading = "To Backup your Playlists"
		a.render(w, r, http.StatusOK, "backup", data)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Redirect(w, r, "/not-found", http.StatusSeeOther)
			return
		}
		page = n
	}

	token, err := a.userToken(ctx)
	if err != nil {
		a.fail(w, r, err, "/", session.FlashNotice)
		return
	}
	result, err := a.engine.BrowsePlaylists(ctx, token, page)
	if err != nil {
		a.fail(w, r, err, "/", session.FlashNotice)
		return
	}

	data.Backup = result
	a.render(w, r, http.StatusOK, "backup", data)
}

func (a *App) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("playlist")
	if id == "" {
		http.Redirect(w, r, "/not-found", http.StatusSeeOther)
		return
	}
	if !a.sessions.LoggedIn(ctx) {
		http.Redirect(w, r, "/backup", http.StatusSeeOther)
		return
	}

	token, err := a.userToken(ctx)
	if err != nil {
		a.fail(w, r, err, "/", session.FlashNotice)
		return
	}
	items, err := a.engine.ExportTracks(ctx, token, id)
	if err != nil {
		a.fail(w, r, err, "/", session.FlashNotice)
		return
	}
	body, err := formatter.ExportToCSV(items)
	if err != nil {
		a.fail(w, r, err, "/", session.FlashNotice)
		return
	}

	filename := formatter.ExportFilename(a.now())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		a.logger.Error("write download", "error", err, "playlist", id, "request_id", server.RequestIDFrom(ctx))
	}
}

func (a *App) analyzeForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := a.newTemplateData(r)
	data.Flash = a.sessions.PopFlash(ctx, session.FlashAnalyze)

	if data.LoggedIn {
		token, err := a.userToken(ctx)
		if err != nil {
			a.fail(w, r, err, "/", session.FlashNotice)
			return
		}
		playlists, err := a.engine.ListPlaylists(ctx, token)
		if err != nil {
			a.fail(w, r, err, "/", session.FlashNotice)
			return
		}
		for _, p := range playlists {
			data.Playlists = append(data.Playlists, playlistOption{
				Name:   p.Name,
				Link:   p.ExternalURLs.Spotify,
				Image:  models.FirstImage(p.Images),
				Tracks: p.Tracks.Total,
			})
		}
	}
	a.render(w, r, http.StatusOK, "analyze", data)
}

func (a *App) analyzed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	link := r.URL.Query().Get("playlist")
	if link == "" {
		http.Redirect(w, r, "/analyze-playlist", http.StatusSeeOther)
		return
	}

	token, err := a.serverToken(ctx)
	if err != nil {
		a.fail(w, r, err, "/analyze-playlist", session.FlashAnalyze)
		return
	}
	report, err := a.engine.AnalyzePlaylist(ctx, token, link, nil)
	if err != nil {
		a.fail(w, r, err, "/analyze-playlist", session.FlashAnalyze)
		return
	}

	data := a.newTemplateData(r)
	data.Report = report
	a.render(w, r, http.StatusOK, "analyzed", data)
}

func (a *App) restoreForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := a.newTemplateData(r)
	data.Flash = a.sessions.PopFlash(ctx, session.FlashRestore)
	if s, ok := a.sessions.PopData(ctx, restoreSummaryKey).(RestoreSummary); ok {
		data.Restore = &s
	}
	data.DefaultName = tasks.DefaultRestoreName(a.now())
	data.MaxTracks = formatter.MaxImportTracks
	a.render(w, r, http.StatusOK, "restore", data)
}

func (a *App) restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invalid := func(msg string) {
		a.fail(w, r, shared.NewUserError(shared.ErrValidationFailed, msg), "/restore", session.FlashRestore)
	}

	if !a.sessions.LoggedIn(ctx) {
		invalid("Log in to restore a playlist.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, formatter.MaxUploadBytes+maxFormOverhead)
	if err := r.ParseMultipartForm(maxFormOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			invalid("The file is too large. The limit is 8 MB.")
			return
		}
		invalid("The upload could not be read.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		invalid("Choose a CSV file to restore.")
		return
	}
	defer file.Close()

	if err := formatter.CheckUpload(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
		a.fail(w, r, err, "/restore", session.FlashRestore)
		return
	}
	imported, err := formatter.ImportCSV(file)
	if err != nil {
		a.fail(w, r, err, "/restore", session.FlashRestore)
		return
	}

	token, err := a.userToken(ctx)
	if err != nil {
		a.fail(w, r, err, "/restore", session.FlashRestore)
		return
	}

	uris := imported.URIs()
	result, err := a.engine.Restore(ctx, token, tasks.RestoreOptions{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Public:      r.PostFormValue("public") == "on",
		URIs:        uris,
	}, nil)

	if err != nil && (result == nil || result.Playlist == nil || errors.Is(err, shared.ErrAuthorizationFailed)) {
		a.fail(w, r, err, "/restore", session.FlashRestore)
		return
	}

	a.sessions.PutData(ctx, restoreSummaryKey, RestoreSummary{
		Name:    result.Playlist.Name,
		URL:     result.Playlist.ExternalURLs.Spotify,
		Added:   result.Added,
		Total:   len(uris),
		Skipped: imported.Skipped,
		Failed:  err != nil,
	})
	if err != nil {
		a.logger.Error("restore incomplete", "error", err, "added", result.Added, "total", len(uris))
		a.sessions.Flash(ctx, session.FlashRestore, fmt.Sprintf("The restore stopped after %d of %d tracks.", result.Added, len(uris)))
	}
	http.Redirect(w, r, "/restore", http.StatusSeeOther)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Reset(r.Context()); err != nil {
		a.logger.Error("reset session", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) errorPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusInternalServerError, "error", a.newTemplateData(r))
}

func (a *App) notFound(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusNotFound, "404", a.newTemplateData(r))
}

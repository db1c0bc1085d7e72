package httpapi

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-safeswipe"
)

// Form field names.
const (
	fieldFiles = "files"
	fieldBio   = "bio"

	maxBioBytes = 4 << 10
)

var (
	errNoForm       = errors.New("request is not a form")
	errBodyTooLarge = errors.New("upload too large")
	errBioTooLong   = fmt.Errorf("bio exceeds %d bytes", maxBioBytes)
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
}).ParseFS(templateFS, "templates/*.html"))

type handlers struct {
	analyzer       Analyzer
	maxUploadBytes int64
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	ModelID string `json:"model_id"`
	Notice  string `json:"notice,omitempty"`
}

// analyzeResponse is the JSON body of POST /api/analyze.
type analyzeResponse struct {
	safeswipe.Report
	ModelID string `json:"model_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:      true,
		ModelID: h.analyzer.ModelID(),
		Notice:  h.analyzer.Notice(),
	})
}

func (h *handlers) apiAnalyze(w http.ResponseWriter, r *http.Request) {
	sub, err := h.readSubmission(w, r)
	if err != nil {
		status := statusFor(err)
		slog.Warn("safeswipe: rejected submission", "status", status, "error", err)
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	report := h.analyzer.Analyze(r.Context(), sub)
	writeJSON(w, http.StatusOK, analyzeResponse{Report: report, ModelID: h.analyzer.ModelID()})
}

// page is the data of both HTML templates.
type page struct {
	ModelID   string
	MaxImages int
	Notice    string
	Error     string
	Bio       string
	Report    *safeswipe.Report
}

func (h *handlers) newPage() page {
	return page{
		ModelID:   h.analyzer.ModelID(),
		MaxImages: h.analyzer.MaxImages(),
		Notice:    h.analyzer.Notice(),
	}
}

func (h *handlers) index(w http.ResponseWriter, _ *http.Request) {
	render(w, http.StatusOK, "index", h.newPage())
}

func (h *handlers) htmlAnalyze(w http.ResponseWriter, r *http.Request) {
	p := h.newPage()

	sub, err := h.readSubmission(w, r)
	if err != nil {
		p.Error = err.Error()
		render(w, statusFor(err), "index", p)
		return
	}

	report := h.analyzer.Analyze(r.Context(), sub)
	p.Bio = sub.Bio
	p.Report = &report
	render(w, http.StatusOK, "results", p)
}

// readSubmission parses a multipart (or url-encoded, bio only) form.
// Files are read fully into memory; the body is capped at maxUploadBytes.
func (h *handlers) readSubmission(w http.ResponseWriter, r *http.Request) (safeswipe.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(h.maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
		if err == nil && len(r.PostForm) == 0 {
			err = errNoForm
		}
	}
	if err != nil {
		return safeswipe.Submission{}, classifyBodyError(err)
	}

	bio := r.FormValue(fieldBio)
	if len(bio) > maxBioBytes {
		return safeswipe.Submission{}, errBioTooLong
	}
	sub := safeswipe.Submission{Bio: strings.TrimSpace(bio)}

	if r.MultipartForm == nil {
		return sub, nil
	}
	for _, fh := range r.MultipartForm.File[fieldFiles] {
		if fh.Filename == "" && fh.Size == 0 {
			continue // empty file input
		}
		in, err := readFile(fh)
		if err != nil {
			return safeswipe.Submission{}, classifyBodyError(err)
		}
		sub.Images = append(sub.Images, in)
	}
	return sub, nil
}

func readFile(fh *multipart.FileHeader) (safeswipe.ImageInput, error) {
	f, err := fh.Open()
	if err != nil {
		return safeswipe.ImageInput{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return safeswipe.ImageInput{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return safeswipe.ImageInput{
		Name:     fh.Filename,
		Data:     data,
		MIMEType: safeswipe.SniffMIME(fh.Header.Get("Content-Type"), data),
	}, nil
}

func classifyBodyError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, mbe.Limit)
	}
	return fmt.Errorf("malformed form: %w", err)
}

func statusFor(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("safeswipe: marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		slog.Error("safeswipe: write response", "error", err)
	}
}

func render(w http.ResponseWriter, status int, name string, p page) {
	var buf strings.Builder
	if err := templates.ExecuteTemplate(&buf, name, p); err != nil {
		slog.Error("safeswipe: render template", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, buf.String()); err != nil {
		slog.Error("safeswipe: write response", "error", err)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"wechat_ai_editor/docimport"
	"wechat_ai_editor/generator"
	"wechat_ai_editor/history"
	"wechat_ai_editor/media"
	"wechat_ai_editor/publisher"
)

const (
	maxUploadBytes = 64 << 20
	defaultFormMem = 32 << 20
	formatTimeout  = 3 * time.Minute
)

// PublisherFactory opens a WeChat publisher on demand. Nil disables publishing.
type PublisherFactory func(ctx context.Context) (*publisher.Publisher, error)

type Server struct {
	session    *generator.Session
	publish    PublisherFactory
	logger     *slog.Logger
	accessLogs io.Writer
	// formMemory is how much of a multipart upload is held in memory
	// before parts spill to temp files.
	formMemory int64
}

func New(session *generator.Session, publish PublisherFactory, logger *slog.Logger) (*Server, error) {
	if session == nil {
		return nil, errors.New("session required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{session: session, publish: publish, logger: logger, accessLogs: os.Stderr, formMemory: defaultFormMem}, nil
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/draft", s.handleDraft).Methods(http.MethodGet)
	api.HandleFunc("/draft/text", s.handleSetText).Methods(http.MethodPut)
	api.HandleFunc("/draft/config", s.handleSetConfig).Methods(http.MethodPut)
	api.HandleFunc("/draft/emoji", s.handleToggleEmoji).Methods(http.MethodPost)

	api.HandleFunc("/images", s.handleAddImages).Methods(http.MethodPost)
	api.HandleFunc("/images/{id}", s.handleRemoveImage).Methods(http.MethodDelete)

	api.HandleFunc("/format", s.handleFormat).Methods(http.MethodPost)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleHistoryList).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryGet).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryDelete).Methods(http.MethodDelete)
	api.HandleFunc("/history/{id}/select", s.handleHistorySelect).Methods(http.MethodPost)

	api.HandleFunc("/publish", s.handlePublish).Methods(http.MethodPost)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.LoggingHandler(s.accessLogs, cors(r))
}

// --- Handlers ---

type textReq struct {
	Text string `json:"text"`
}

type configReq struct {
	Tone         *string `json:"tone"`
	IncludeEmoji *bool   `json:"includeEmoji"`
}

type imagesResp struct {
	Added    []media.Asset   `json:"added"`
	Failures []failureResp   `json:"failures,omitempty"`
	Draft    generator.Draft `json:"draft"`
}

type failureResp struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type formatResp struct {
	HTML  string          `json:"html"`
	Draft generator.Draft `json:"draft"`
}

type importResp struct {
	Kind      string          `json:"kind"`
	Extracted string          `json:"extracted,omitempty"`
	HTML      string          `json:"html,omitempty"`
	Draft     generator.Draft `json:"draft"`
}

type publishReq struct {
	HistoryID string `json:"historyId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Digest    string `json:"digest"`
	CoverID   string `json:"coverId"`
}

type publishResp struct {
	MediaID string `json:"media_id"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	var req textReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.session.SetText(req.Text)
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Tone != nil {
		if err := s.session.SetTone(generator.Tone(*req.Tone)); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.IncludeEmoji != nil && *req.IncludeEmoji != s.session.Config().IncludeEmoji {
		s.session.ToggleEmoji()
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleToggleEmoji(w http.ResponseWriter, r *http.Request) {
	s.session.ToggleEmoji()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleAddImages(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no files in field \"files\""))
		return
	}

	files := make([]media.File, 0, len(headers))
	for _, h := range headers {
		files = append(files, multipartFile(h))
	}
	added, failures := s.session.AddImages(r.Context(), files)

	resp := imagesResp{Added: added, Draft: s.session.Snapshot()}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, failureResp{Name: f.Name, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	if !s.session.RemoveImage(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, errors.New("image not found"))
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), formatTimeout)
	defer cancel()

	html, err := s.session.Format(ctx)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatResp{HTML: html, Draft: s.session.Snapshot()})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), formatTimeout)
	defer cancel()

	res, err := s.session.ImportDocument(ctx, header.Filename, data)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	kind := "docx"
	if res.Kind == docimport.KindPDF {
		kind = "pdf"
	}
	writeJSON(w, http.StatusOK, importResp{Kind: kind, Extracted: res.Extracted, HTML: res.HTML, Draft: s.session.Snapshot()})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.History())
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, e := range s.session.History() {
		if e.ID == id {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}
	writeError(w, http.StatusNotFound, history.ErrNotFound)
}

func (s *Server) handleHistorySelect(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.SelectHistory(mux.Vars(r)["id"]); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.DeleteHistory(mux.Vars(r)["id"]); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.History())
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if s.publish == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("wechat publishing is not configured"))
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := publisher.Params{Title: req.Title, Author: req.Author, Digest: req.Digest, CoverID: req.CoverID}
	if req.HistoryID != "" {
		var found bool
		for _, e := range s.session.History() {
			if e.ID == req.HistoryID {
				params.HTML, params.Images, found = e.FormattedContent, e.Images, true
				break
			}
		}
		if !found {
			writeError(w, http.StatusNotFound, history.ErrNotFound)
			return
		}
	} else {
		d := s.session.Snapshot()
		params.HTML, params.Images = d.HTML, d.Images
	}

	p, err := s.publish(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	mediaID, err := p.PublishDraft(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResp{MediaID: mediaID})
}

// --- Helpers ---

// parseForm reads a multipart body of at most maxUploadBytes. Callers must
// release r.MultipartForm once done with its files.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(s.formMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	var genErr *generator.GenerationError
	switch {
	case errors.Is(err, generator.ErrGenerating):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, generator.ErrNothingToFormat):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, docimport.ErrUnsupported), errors.Is(err, docimport.ErrParse):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &genErr):
		s.logger.Warn("generation failed", "err", err)
		writeError(w, http.StatusBadGateway, err)
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func multipartFile(h *multipart.FileHeader) media.File {
	return media.File{
		Name:     h.Filename,
		MIMEType: h.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return h.Open()
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Package api exposes the interview service over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/designdrill/designdrill/internal/articlechat"
	"github.com/designdrill/designdrill/internal/interview"
	"github.com/designdrill/designdrill/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB for JSON bodies
	maxUploadBodySize  = 20 << 20 // 20MB for multipart bodies with images
	maxContentLength   = 10000
)

// Deps holds the services the HTTP layer delegates to.
type Deps struct {
	Interviews *interview.Service
	Chats      *articlechat.Service
}

// NewHandler returns the HTTP handler for the interview API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/interviews", func(r chi.Router) {
		r.Post("/start", handleStartInterview(deps))
		r.Get("/list", handleListInterviews(deps))
		r.Get("/article-chat/{chatID}", handleGetArticleChat(deps))
		r.Post("/article-chat/{chatID}/send", handleSendArticleMessage(deps))
		r.Post("/article-chat/{chatID}/end", handleEndArticleChat(deps))
		r.Get("/{interviewID}", handleGetInterview(deps))
		r.Post("/{interviewID}/send", handleSendMessage(deps))
		r.Post("/{interviewID}/end", handleEndInterview(deps))
		r.Post("/{interviewID}/articles/{articleID}/chat", handleStartArticleChat(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type startInterviewRequest struct {
	Question string `json:"question"`
}

func handleStartInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req startInterviewRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Question) > maxContentLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question exceeds %d characters", maxContentLength)
			return
		}

		view, err := deps.Interviews.Start(r.Context(), req.Question)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start interview: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, view)
	}
}

func handleListInterviews(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := deps.Interviews.List(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interviews: %v", err)
			return
		}
		if views == nil {
			views = []interview.View{}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "interviewID")

		view, err := deps.Interviews.Get(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interview not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get interview: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleSendMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, uploads, err := readSendBody(w, r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if len(content) > maxContentLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content exceeds %d characters", maxContentLength)
			return
		}

		result, err := deps.Interviews.Send(r.Context(), chi.URLParam(r, "interviewID"), content, uploads)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no active interview found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleEndInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Interviews.End(r.Context(), chi.URLParam(r, "interviewID"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interview not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to end interview: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Interview ended successfully",
			"interview": view,
		})
	}
}

func handleStartArticleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		interviewID := chi.URLParam(r, "interviewID")
		articleID := chi.URLParam(r, "articleID")

		view, err := deps.Chats.Start(r.Context(), interviewID, articleID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interview or article not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start article chat: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleGetArticleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Chats.Get(r.Context(), chi.URLParam(r, "chatID"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "article chat not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get article chat: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleEndArticleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := deps.Chats.End(r.Context(), chi.URLParam(r, "chatID"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "article chat not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to end article chat: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type sendArticleMessageRequest struct {
	Content string `json:"content"`
}

func handleSendArticleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req sendArticleMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if len(req.Content) > maxContentLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content exceeds %d characters", maxContentLength)
			return
		}

		result, err := deps.Chats.Send(r.Context(), chi.URLParam(r, "chatID"), req.Content)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no active article chat found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// readSendBody accepts either a multipart form (content field + images files)
// or a JSON body with a content field.
func readSendBody(w http.ResponseWriter, r *http.Request) (string, []interview.Upload, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
			return "", nil, fmt.Errorf("invalid multipart body: %w", err)
		}

		content := r.FormValue("content")
		var uploads []interview.Upload
		if r.MultipartForm != nil {
			for _, header := range r.MultipartForm.File["images"] {
				data, err := readUpload(header)
				if err != nil {
					return "", nil, err
				}
				uploads = append(uploads, interview.Upload{
					Data: data,
					Ext:  filepath.Ext(header.Filename),
				})
			}
		}
		return content, uploads, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		return "", nil, fmt.Errorf("invalid request body: %w", err)
	}
	return req.Content, nil, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %q: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading upload %q: %w", header.Filename, err)
	}
	return data, nil
}

// decodeOptionalJSON decodes a JSON body into dst, treating an empty body as
// the zero value.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

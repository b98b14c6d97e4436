package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"blogsvc/internal/app"
	"blogsvc/pkg/domain"
)

const multipartMemory = 32 << 20

type likeRequest struct {
	UserID string `json:"userId"`
}

type commentRequest struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type addArticleJSON struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	articles, err := s.app.ListArticles()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// /articles/add, /articles/upload-image, /articles/search/{query},
// /articles/{id} and /articles/{id}/{like|unlike|comment}
func (s *Server) handleArticlePath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/articles/")
	switch {
	case path == "add":
		s.handleAddArticle(w, r)
		return
	case path == "upload-image":
		s.handleUploadImage(w, r)
		return
	case strings.HasPrefix(path, "search/"):
		s.handleSearch(w, r, strings.TrimPrefix(path, "search/"))
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" || len(parts) > 2 {
		notFound(w)
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetArticle(w, r, id)
		case http.MethodDelete:
			s.authenticated(func(w http.ResponseWriter, r *http.Request, claims domain.Claims) {
				s.handleDeleteArticle(w, r, id, claims)
			}).ServeHTTP(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	switch parts[1] {
	case "like":
		s.handleLike(w, r, id, s.app.ToggleLike)
	case "unlike":
		s.handleLike(w, r, id, s.app.Unlike)
	case "comment":
		s.handleComment(w, r, id)
	default:
		notFound(w)
	}
}

func (s *Server) handleAddArticle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	requester, ok := s.optionalClaims(w, r)
	if !ok {
		return
	}
	var in app.NewArticle
	if isJSON(r) {
		var req addArticleJSON
		if !decodeJSON(w, r, &req) {
			return
		}
		in = app.NewArticle{Title: req.Title, Description: req.Description, Author: req.Author}
	} else {
		if !s.parseMultipart(w, r) {
			return
		}
		in = app.NewArticle{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Author:      r.FormValue("author"),
		}
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			defer file.Close()
			in.Image = &app.ImageUpload{Filename: header.Filename, Body: file, Size: header.Size}
		case !errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
	}
	article, err := s.app.AddArticle(r.Context(), in, requester)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Article added!",
		"article": article,
	})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()
	url, err := s.app.UploadImage(r.Context(), &app.ImageUpload{Filename: header.Filename, Body: file, Size: header.Size})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request, id string) {
	article, err := s.app.GetArticle(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request, id string, op func(articleID, userID string) ([]domain.UserRef, error)) {
	var req likeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	likes, err := op(id, req.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"likes": likes})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request, id string) {
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	comments, err := s.app.AddComment(id, req.UserID, req.Text)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, query string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	results, err := s.app.Search(query)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request, id string, claims domain.Claims) {
	if err := s.app.DeleteArticle(r.Context(), id, claims); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Article deleted"})
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return false
	}
	return true
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	"github.com/Chative-rag-chat/server/internal/session"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

const initErrorPrefix = "Error initializing chatbot: "

type errorResponse struct {
	Error string    `json:"error"`
	Kind  errx.Kind `json:"kind"`
}

type sessionResponse struct {
	SessionID   string    `json:"session_id"`
	Initialized bool      `json:"initialized"`
	CreatedAt   time.Time `json:"created_at"`
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	OK        bool      `json:"ok"`
	Kind      errx.Kind `json:"kind,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	CostUSD   float64   `json:"cost_usd"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	SessionID string           `json:"session_id"`
	Turns     []model.ChatTurn `json:"turns"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   sess.ID,
		Initialized: false,
		CreatedAt:   sess.CreatedAt,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, errx.NewKind(errx.KindInvalidInput, err, http.StatusRequestEntityTooLarge, "upload too large"), initErrorPrefix)
			return
		}
		s.writeError(w, errx.Config(session.MissingInputsMessage, err), initErrorPrefix)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := session.InitRequest{APIKey: r.FormValue("api_key")}
	indexFile, _ := formFile(r, "index")
	chunksFile, chunksHeader := formFile(r, "chunks")
	if indexFile != nil {
		defer indexFile.Close()
		req.Index = indexFile
	}
	if chunksFile != nil {
		defer chunksFile.Close()
		req.Chunks = chunksFile
		req.ChunksName = chunksHeader.Filename
	}

	if err := sess.Initialize(r.Context(), req); err != nil {
		s.writeError(w, err, initErrorPrefix)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   sess.ID,
		Initialized: true,
		CreatedAt:   sess.CreatedAt,
	})
}

func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader) {
	f, h, err := r.FormFile(field)
	if err != nil {
		return nil, nil
	}
	return f, h
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}

	var body askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		s.writeError(w, errx.NewKind(errx.KindInvalidInput, err, http.StatusBadRequest, "invalid JSON body"), "")
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	ex, err := sess.Ask(ctx, body.Query)
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Query:     ex.Turn.Query,
		Answer:    ex.Turn.Answer,
		OK:        ex.Reply.OK(),
		Kind:      ex.Reply.Kind(),
		Sources:   ex.Reply.Sources,
		CostUSD:   ex.Reply.CostUSD,
		CreatedAt: ex.Turn.CreatedAt,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	turns, err := sess.History(r.Context())
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if turns == nil {
		turns = []model.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sess.ID, Turns: turns})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err, "")
		return
	}
	if err := sess.ClearHistory(r.Context()); err != nil {
		s.writeError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error, prefix string) {
	status := errx.StatusOf(err)
	message := errx.PublicMessage(err)
	if s.cfg.VerboseErrors {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{Error: prefix + message, Kind: errx.KindOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("Error encoding response")
	}
}

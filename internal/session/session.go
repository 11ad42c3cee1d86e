// Package session holds per-user chat state: the chatbot built from that
// user's uploads and the turns exchanged so far.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chative-rag-chat/server/internal/agent/chatbot"
	"github.com/Chative-rag-chat/server/internal/agent/graph/conversations"
	"github.com/Chative-rag-chat/server/internal/agent/model"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

const MissingInputsMessage = "Please provide all required files and API key"

// BotFactory builds an unconfigured chatbot.
type BotFactory func() *chatbot.Chatbot

// InitRequest carries the uploads and credential for one initialisation.
type InitRequest struct {
	Index      io.Reader
	Chunks     io.Reader
	ChunksName string // original file name; its extension picks the decoder
	APIKey     string
}

// Exchange is the outcome of one question.
type Exchange struct {
	Turn  model.ChatTurn
	Reply model.Reply
}

type Session struct {
	ID        string
	CreatedAt time.Time

	newBot   BotFactory
	messages *conversations.MessagesManager
	verbose  bool
	lastUsed atomic.Int64
	log      zerolog.Logger

	mu  sync.Mutex
	bot *chatbot.Chatbot
}

func newSession(id string, newBot BotFactory, messages *conversations.MessagesManager, verbose bool) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		newBot:    newBot,
		messages:  messages,
		verbose:   verbose,
		log:       logx.With().Str("session_id", id).Logger(),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed is the time of the last interaction.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Initialized reports whether the session can answer questions.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot != nil && s.bot.Configured()
}

// Initialize stores the uploads in temporary files, builds a chatbot from
// them and removes the files again. On failure the session keeps its
// previous chatbot, if any.
func (s *Session) Initialize(ctx context.Context, req InitRequest) error {
	if req.Index == nil || req.Chunks == nil || strings.TrimSpace(req.APIKey) == "" {
		return errx.Config(MissingInputsMessage, nil)
	}

	dir, err := os.MkdirTemp("", "ragchat-"+s.ID+"-")
	if err != nil {
		return errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn().Err(err).Msg("Error removing upload files")
		}
	}()

	chunksExt := filepath.Ext(req.ChunksName)
	if chunksExt == "" {
		chunksExt = ".pkl"
	}
	indexPath := filepath.Join(dir, "index.bin")
	chunksPath := filepath.Join(dir, "chunks"+chunksExt)
	if err := writeFile(indexPath, req.Index); err != nil {
		return errx.Config("could not store index upload", err)
	}
	if err := writeFile(chunksPath, req.Chunks); err != nil {
		return errx.Config("could not store chunks upload", err)
	}

	return s.InitializeFromFiles(ctx, indexPath, chunksPath, req.APIKey)
}

// InitializeFromFiles builds a chatbot from files already on disk.
func (s *Session) InitializeFromFiles(ctx context.Context, indexPath, chunksPath, apiKey string) error {
	if indexPath == "" || chunksPath == "" || strings.TrimSpace(apiKey) == "" {
		return errx.Config(MissingInputsMessage, nil)
	}
	s.touch()

	bot := s.newBot()
	if err := bot.SetupModel(ctx, apiKey); err != nil {
		return err
	}
	if err := bot.LoadData(ctx, indexPath, chunksPath); err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.bot
	s.bot = bot
	s.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Error closing previous chatbot")
		}
	}
	s.log.Info().Msg("Chatbot initialized successfully")
	return nil
}

// Ask answers query with the session history and records the turn, including
// failed answers. Only an unusable request or a history store failure is
// returned as an error.
func (s *Session) Ask(ctx context.Context, query string) (Exchange, error) {
	if strings.TrimSpace(query) == "" {
		return Exchange{}, errx.InvalidInput("query must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.bot == nil || !s.bot.Configured() {
		return Exchange{}, errx.NotConfigured("chatbot")
	}

	history, err := s.messages.LoadHistory(ctx, s.ID)
	if err != nil {
		return Exchange{}, err
	}

	reply := s.bot.AnswerInSession(ctx, s.ID, query, history)
	turn := model.NewChatTurn(query, reply.PublicText(s.verbose))
	if err := s.messages.SaveTurn(ctx, s.ID, turn); err != nil {
		return Exchange{}, fmt.Errorf("save turn: %w", err)
	}

	ev := s.log.Debug().Bool("ok", reply.OK()).Int("context_turns", min(len(history), s.messages.MaxTurns()))
	if n, err := s.messages.Count(ctx, s.ID); err == nil {
		ev = ev.Int("turns", n)
	}
	ev.Msg("Turn recorded")
	return Exchange{Turn: turn, Reply: reply}, nil
}

// History returns every turn, oldest first.
func (s *Session) History(ctx context.Context) ([]model.ChatTurn, error) {
	s.touch()
	return s.messages.LoadHistory(ctx, s.ID)
}

func (s *Session) ClearHistory(ctx context.Context) error {
	s.touch()
	return s.messages.Clear(ctx, s.ID)
}

// Close releases the chatbot. History is left to the repository TTL.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot == nil {
		return nil
	}
	err := s.bot.Close()
	s.bot = nil
	return err
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

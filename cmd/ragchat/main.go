// Command ragchat is a terminal client: it loads a FAISS index and a chunk
// list, then answers questions against them with Gemini.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Chative-rag-chat/server/internal/app"
	"github.com/Chative-rag-chat/server/internal/session"
	"github.com/Chative-rag-chat/server/internal/tui"
	"github.com/Chative-rag-chat/server/internal/watch"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

func main() {
	var (
		indexPath  = flag.String("index", "", "path to the FAISS index file")
		chunksPath = flag.String("chunks", "", "path to the chunks file (.pkl, .json, .yaml or .db)")
		apiKey     = flag.String("api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
		envFile    = flag.String("env", ".env", "env file to load")
		logFile    = flag.String("log", "ragchat.log", "log file; the terminal is owned by the UI")
		watchFiles = flag.Bool("watch", false, "reload when the index or chunks file changes")
	)
	flag.Parse()

	if err := run(*indexPath, *chunksPath, *apiKey, *envFile, *logFile, *watchFiles); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(indexPath, chunksPath, apiKey, envFile, logFile string, watchFiles bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := app.LoadConfig(envFile)
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = cfg.APIKey
	}
	if indexPath == "" || chunksPath == "" || apiKey == "" {
		return errors.New(session.MissingInputsMessage + " (-index, -chunks, -api-key)")
	}

	out, err := openLog(logFile)
	if err != nil {
		return err
	}
	defer out.Close()
	app.InitLogger(cfg, out)

	historyRepo, closeRepo, err := app.NewHistoryRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	embedder, err := app.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	sessions, err := app.NewSessionManager(cfg, historyRepo, app.NewBotFactory(cfg, embedder))
	if err != nil {
		return err
	}
	defer sessions.CloseAll()

	sess := sessions.Create()
	if err := sess.InitializeFromFiles(ctx, indexPath, chunksPath, apiKey); err != nil {
		return fmt.Errorf("Error initializing chatbot: %w", err)
	}

	reload := func(ctx context.Context) error {
		return sess.InitializeFromFiles(ctx, indexPath, chunksPath, apiKey)
	}
	summary := fmt.Sprintf("%s + %s | %s", filepath.Base(indexPath), filepath.Base(chunksPath), cfg.Response.Model)
	p := tea.NewProgram(tui.New(ctx, sess, reload, summary), tea.WithAltScreen())

	if watchFiles {
		w, err := watch.NewFileWatcher([]string{indexPath, chunksPath}, watch.DefaultDebounce)
		if err != nil {
			return err
		}
		defer w.Stop()
		go func() {
			for range w.Watch(ctx) {
				p.Send(tui.FilesChangedMsg{})
			}
		}()
	}

	logx.Info().Str("session_id", sess.ID).Msg("Terminal chat started")
	_, err = p.Run()
	return err
}

func openLog(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{io.Discard}, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

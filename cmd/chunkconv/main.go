// Command chunkconv converts a chunk list (pickle, JSON or YAML) into a bbolt
// database that the chatbot can open without loading every chunk into memory.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Chative-rag-chat/server/internal/agent/chunks"
	"github.com/Chative-rag-chat/server/internal/core"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

func main() {
	in := flag.String("in", "", "source chunks file (.pkl, .json, .yaml)")
	out := flag.String("out", "chunks.db", "destination bbolt file")
	flag.Parse()

	logx.Init(logx.LoggerOpts{Environment: core.Development, Level: "info"})

	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: chunkconv -in chunks.pkl [-out chunks.db]")
		os.Exit(2)
	}

	n, err := convert(*in, *out)
	if err != nil {
		logx.Fatal().Err(err).Str("in", *in).Msg("Conversion failed")
	}
	logx.Info().Int("chunks", n).Str("out", *out).Msg("Wrote chunk store")
}

func convert(in, out string) (int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	store, err := chunks.Decode(f, in)
	if err != nil {
		return 0, err
	}
	if err := chunks.SaveBolt(out, store.Texts()); err != nil {
		return 0, err
	}
	return store.Len(), nil
}

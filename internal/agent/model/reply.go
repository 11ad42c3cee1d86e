package model

import (
	errx "github.com/Chative-rag-chat/server/internal/core/error"
)

// ErrorPrefix starts every user-facing failure answer.
const ErrorPrefix = "Error generating response: "

// Reply is the outcome of answering one question: either generated text or a
// categorised failure. It never needs to be checked with a separate error.
type Reply struct {
	Answer  string
	Sources []string
	CostUSD float64
	Err     error
}

// Failed builds a failure reply.
func Failed(err error) Reply {
	return Reply{Err: err}
}

// OK reports whether generation succeeded.
func (r Reply) OK() bool {
	return r.Err == nil
}

// Kind is empty on success.
func (r Reply) Kind() errx.Kind {
	if r.Err == nil {
		return ""
	}
	return errx.KindOf(r.Err)
}

// Text renders the answer, or the error prefix followed by the full error message.
func (r Reply) Text() string {
	return r.PublicText(true)
}

// PublicText is Text with the error detail reduced to its safe message when
// verbose is false.
func (r Reply) PublicText(verbose bool) string {
	if r.Err == nil {
		return r.Answer
	}
	if verbose {
		return ErrorPrefix + r.Err.Error()
	}
	return ErrorPrefix + errx.PublicMessage(r.Err)
}

// Package stream serializes a chain run into a single byte stream:
// every answer token in production order, then a trailing
// source-attribution sentinel.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/chain"
)

// SentinelPrefix introduces the trailing sources block. The full shape
// is "\n\n[SOURCES] <json-array>\n" and consumers locate it with a
// trailing-anchor match.
const SentinelPrefix = "\n\n[SOURCES] "

// Encode copies tokens to w as they become available, flushing after
// each write when w supports it, and appends the sources sentinel once
// the chain completes. It returns the number of bytes written.
//
// On a failed run nothing more is written: with zero bytes out the
// caller can still send a structured error; with tokens already out the
// caller must abort the transport so the partial answer is never
// presented as complete.
func Encode(w io.Writer, tokens <-chan chain.Token, results <-chan chain.Result) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var written int64

	for tok := range tokens {
		n, err := io.WriteString(w, tok.Content)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res := <-results
	if res.Err != nil {
		return written, res.Err
	}

	payload, err := json.Marshal(res.Sources)
	if err != nil {
		return written, err
	}
	n, err := fmt.Fprintf(w, "%s%s\n", SentinelPrefix, payload)
	written += int64(n)
	if err != nil {
		return written, err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return written, nil
}

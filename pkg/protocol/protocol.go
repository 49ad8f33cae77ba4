// Package protocol defines the line-oriented text protocol: bounded line
// reading, command parsing, and the reply texts sent to clients.
package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const (
	// MaxLoginLine is the default maximum length of a username or password line.
	MaxLoginLine = 1024

	// MaxCommandLine is the default maximum length of a command line.
	MaxCommandLine = 2048
)

// ErrLineTooLong is returned when a line exceeds the caller's limit. The
// rest of the offending line has been consumed, so reading may continue.
var ErrLineTooLong = errors.New("protocol: line too long")

// LineReader reads newline-terminated lines with an explicit length limit.
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReader(r)}
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
// A final unterminated line is returned before io.EOF.
func (lr *LineReader) ReadLine(limit int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if len(trimEOL(buf)) > limit {
				tooLong = true
				buf = nil
			}
		}
		switch {
		case err == nil:
			if tooLong {
				return "", ErrLineTooLong
			}
			return string(trimEOL(buf)), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0 && !tooLong:
			return string(trimEOL(buf)), nil
		default:
			return "", err
		}
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\n'})
	return bytes.TrimSuffix(b, []byte{'\r'})
}

// Command is one parsed input line.
type Command struct {
	Action  string // text before the first space
	Message string // text after the first space
	HasArgs bool   // the line contained a space
}

// Parse splits a line on its first space into action and message.
func Parse(line string) Command {
	action, message, found := strings.Cut(line, " ")
	return Command{Action: action, Message: message, HasArgs: found}
}

// Token returns the first space-delimited token of the message and the
// remainder after the space that ends it.
func (c Command) Token() (token, rest string) {
	token, rest, _ = strings.Cut(c.Message, " ")
	return token, rest
}

// IsBlank reports whether s is empty or only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// MaxLineLength bounds the bytes kept for an unterminated line.
const MaxLineLength = 4096

// LastLineTeeReader wraps an io.Reader and tracks the last complete line read
// through it. Only the current line is buffered, so it can sit on a stream of
// any length. It is safe for concurrent use.
type LastLineTeeReader struct {
	reader   io.Reader
	lastLine string
	partial  []byte // bytes after the last newline, at most MaxLineLength
	mu       sync.RWMutex
}

// NewLastLineTeeReader creates a new LastLineTeeReader that wraps the given reader.
func NewLastLineTeeReader(r io.Reader) *LastLineTeeReader {
	return &LastLineTeeReader{
		reader: r,
	}
}

// Read implements io.Reader.
func (lt *LastLineTeeReader) Read(p []byte) (n int, err error) {
	n, err = lt.reader.Read(p)
	if n > 0 {
		lt.mu.Lock()
		lt.processNewData(p[:n])
		lt.mu.Unlock()
	}

	return n, err //nolint:wrapcheck
}

// processNewData must be called with the write lock held.
func (lt *LastLineTeeReader) processNewData(data []byte) {
	idx := bytes.LastIndexByte(data, '\n')
	if idx < 0 {
		lt.appendPartial(data)
		return
	}

	// The last complete line ends at idx; it may start in an earlier read.
	head := data[:idx]
	if prev := bytes.LastIndexByte(head, '\n'); prev >= 0 {
		lt.partial = lt.partial[:0]
		head = head[prev+1:]
	}

	lt.appendPartial(head)
	lt.lastLine = strings.TrimSuffix(string(lt.partial), "\r")

	lt.partial = lt.partial[:0]
	lt.appendPartial(data[idx+1:])
}

func (lt *LastLineTeeReader) appendPartial(b []byte) {
	room := MaxLineLength - len(lt.partial)
	if room <= 0 {
		return
	}

	if len(b) > room {
		b = b[:room]
	}

	lt.partial = append(lt.partial, b...)
}

// GetLastLine returns the last complete line that was read, without its line ending.
// Returns an empty string if no complete lines have been read yet.
// If maxLength > 0, it truncates the last line to that length and appends "..." if it exceeds that length.
func (lt *LastLineTeeReader) GetLastLine(maxLength int) string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	result := lt.lastLine
	if maxLength > 3 && len(result) > maxLength { //nolint:mnd
		result = result[:maxLength-3] + "..."
	}

	return result
}

// GetPartialLine returns the data read after the last newline.
func (lt *LastLineTeeReader) GetPartialLine() string {
	lt.mu.RLock()
	defer lt.mu.RUnlock()

	return string(lt.partial)
}

// Reset forgets the tracked lines. The underlying reader is not affected.
func (lt *LastLineTeeReader) Reset() {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.lastLine = ""
	lt.partial = lt.partial[:0]
}

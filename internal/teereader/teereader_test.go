// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastLineTeeReader_PassesDataThrough(t *testing.T) {
	input := "line one\nline two\npartial"
	teeReader := NewLastLineTeeReader(strings.NewReader(input))

	out, err := io.ReadAll(teeReader)
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestLastLineTeeReader_Lines(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectedLast    string
		expectedPartial string
	}{
		{"single line with newline", "hello world\n", "hello world", ""},
		{"single line without newline", "hello world", "", "hello world"},
		{"empty string", "", "", ""},
		{"just newline", "\n", "", ""},
		{"multiple lines", "a\nb\nc\n", "c", ""},
		{"multiple lines with partial", "a\nb\nc", "b", "c"},
		{"trailing empty line", "a\n\n", "", ""},
		{"crlf", "panic: boom\r\n", "panic: boom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			teeReader := NewLastLineTeeReader(strings.NewReader(tt.input))

			_, err := io.ReadAll(teeReader)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedLast, teeReader.GetLastLine(0))
			assert.Equal(t, tt.expectedPartial, teeReader.GetPartialLine())
		})
	}
}

func TestLastLineTeeReader_ChunkedReading(t *testing.T) {
	// OneByteReader splits every line across many reads.
	teeReader := NewLastLineTeeReader(iotest.OneByteReader(strings.NewReader("starting\nindexing package idl\nready")))

	_, err := io.ReadAll(teeReader)
	require.NoError(t, err)

	assert.Equal(t, "indexing package idl", teeReader.GetLastLine(0))
	assert.Equal(t, "ready", teeReader.GetPartialLine())
}

func TestLastLineTeeReader_ProgressiveReading(t *testing.T) {
	pr, pw := io.Pipe()
	teeReader := NewLastLineTeeReader(pr)

	buf := make([]byte, 64)

	go func() {
		_, _ = pw.Write([]byte("first "))
		_, _ = pw.Write([]byte("line\nsecond"))
		_ = pw.Close()
	}()

	_, err := teeReader.Read(buf)
	require.NoError(t, err)
	assert.Empty(t, teeReader.GetLastLine(0))
	assert.Equal(t, "first ", teeReader.GetPartialLine())

	_, err = teeReader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "first line", teeReader.GetLastLine(0))
	assert.Equal(t, "second", teeReader.GetPartialLine())

	_, err = teeReader.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestLastLineTeeReader_Truncation(t *testing.T) {
	teeReader := NewLastLineTeeReader(strings.NewReader("a rather long line of text\n"))

	_, err := io.ReadAll(teeReader)
	require.NoError(t, err)

	assert.Equal(t, "a rather...", teeReader.GetLastLine(11))
	assert.Equal(t, "a rather long line of text", teeReader.GetLastLine(100))
}

func TestLastLineTeeReader_LongLineIsBounded(t *testing.T) {
	long := strings.Repeat("x", MaxLineLength*3)
	teeReader := NewLastLineTeeReader(strings.NewReader(long + "\nnext"))

	_, err := io.ReadAll(teeReader)
	require.NoError(t, err)

	assert.Len(t, teeReader.GetLastLine(0), MaxLineLength)
	assert.Equal(t, "next", teeReader.GetPartialLine())
}

func TestLastLineTeeReader_ConcurrentAccess(t *testing.T) {
	data := strings.Repeat("some output\n", 1000)
	teeReader := NewLastLineTeeReader(iotest.HalfReader(strings.NewReader(data)))

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		_, _ = io.Copy(io.Discard, teeReader)
	}()

	go func() {
		defer wg.Done()

		for range 100 {
			line := teeReader.GetLastLine(0)
			assert.True(t, line == "" || line == "some output")
		}
	}()

	wg.Wait()
	assert.Equal(t, "some output", teeReader.GetLastLine(0))
}

func TestLastLineTeeReader_Reset(t *testing.T) {
	teeReader := NewLastLineTeeReader(strings.NewReader("a\nb"))

	_, err := io.ReadAll(teeReader)
	require.NoError(t, err)

	teeReader.Reset()
	assert.Empty(t, teeReader.GetLastLine(0))
	assert.Empty(t, teeReader.GetPartialLine())
}

func TestLastLineTeeReader_ErrorHandling(t *testing.T) {
	errRead := errors.New("read failed")
	teeReader := NewLastLineTeeReader(io.MultiReader(strings.NewReader("before\n"), iotest.ErrReader(errRead)))

	_, err := io.ReadAll(teeReader)
	require.ErrorIs(t, err, errRead)
	assert.Equal(t, "before", teeReader.GetLastLine(0))
}

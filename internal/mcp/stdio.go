package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

const maxMessageBytes = 32 << 20

type framing int

const (
	// framingLine is MCP stdio: one JSON message per line.
	framingLine framing = iota
	// framingHeader is LSP-style "Content-Length: N\r\n\r\n<body>".
	framingHeader
)

// readStdioMessage reads the next message in either framing. Blank lines
// between messages are skipped. io.EOF is returned only at a clean boundary.
func readStdioMessage(r *bufio.Reader) ([]byte, framing, error) {
	for {
		line, err := r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			if err != nil {
				return nil, framingLine, err
			}
			continue
		}
		if len(line) > maxMessageBytes {
			return nil, framingLine, fmt.Errorf("message exceeds %d bytes", maxMessageBytes)
		}
		if isHeaderLine(trimmed) {
			body, herr := readHeaderFramed(r, string(trimmed))
			return body, framingHeader, herr
		}
		if err != nil && err != io.EOF {
			return nil, framingLine, err
		}
		// a final message without trailing newline is still delivered
		return trimmed, framingLine, nil
	}
}

func isHeaderLine(line []byte) bool {
	if len(line) == 0 || line[0] == '{' || line[0] == '[' {
		return false
	}
	name, _, ok := strings.Cut(string(line), ":")
	return ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length")
}

func readHeaderFramed(r *bufio.Reader, first string) ([]byte, error) {
	contentLength := parseContentLength(first)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read header: %w", unexpectedEOF(err))
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		if n := parseContentLength(trimmed); n >= 0 {
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	if contentLength > maxMessageBytes {
		return nil, fmt.Errorf("message exceeds %d bytes", maxMessageBytes)
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", unexpectedEOF(err))
	}
	return body, nil
}

func parseContentLength(line string) int {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
		return -1
	}
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n); err != nil || n < 0 {
		return -1
	}
	return n
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func writeStdioMessage(w io.Writer, f framing, payload []byte) error {
	if f == framingHeader {
		if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
			return err
		}
		_, err := w.Write(payload)
		return err
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

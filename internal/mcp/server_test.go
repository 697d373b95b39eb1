package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"llm-jukebox/internal/protocol"
)

type fakeHandler struct {
	downloads []string
	searches  []string
	infos     []string
}

func (f *fakeHandler) Download(_ context.Context, query string) string {
	f.downloads = append(f.downloads, query)
	if strings.TrimSpace(query) == "" {
		return "No results found for: " + query
	}
	return "Successfully downloaded song: 'Believer' by Imagine Dragons\nFile saved as: Believer.mp3"
}

func (f *fakeHandler) Search(_ context.Context, query string) string {
	f.searches = append(f.searches, query)
	return "https://www.youtube.com/watch?v=7wtfhZwyrcc"
}

func (f *fakeHandler) Info(_ context.Context, url string) string {
	f.infos = append(f.infos, url)
	return `{"title": "Believer"}`
}

// runLines feeds newline-framed requests to a fresh server and returns the
// decoded responses in order.
func runLines(t *testing.T, h ToolHandler, requests ...string) []map[string]any {
	t.Helper()
	srv := NewServer(ServerOptions{Handler: h, Version: "test"})
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("response is not a JSON line: %q", scanner.Text())
		}
		responses = append(responses, resp)
	}
	return responses
}

func resultOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %#v", resp)
	}
	return result
}

func errorCodeOf(t *testing.T, resp map[string]any) float64 {
	t.Helper()
	rpcErr, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %#v", resp)
	}
	code, _ := rpcErr["code"].(float64)
	return code
}

func toolText(t *testing.T, resp map[string]any) (string, bool) {
	t.Helper()
	result := resultOf(t, resp)
	content, ok := result["content"].([]any)
	if !ok || len(content) != 1 {
		t.Fatalf("expected one content item, got %#v", result["content"])
	}
	item := content[0].(map[string]any)
	if item["type"] != "text" {
		t.Fatalf("expected text content, got %#v", item)
	}
	isError, _ := result["isError"].(bool)
	return item["text"].(string), isError
}

func callTool(id int, name string, args map[string]any) string {
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": args})
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":%s}`, id, params)
}

func TestServer_InitializeNegotiatesProtocolVersion(t *testing.T) {
	responses := runLines(t, &fakeHandler{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"claude","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`,
	)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses (notification unanswered), got %d", len(responses))
	}

	first := resultOf(t, responses[0])
	if first["protocolVersion"] != "2025-03-26" {
		t.Fatalf("expected echoed protocol version, got %v", first["protocolVersion"])
	}
	info := first["serverInfo"].(map[string]any)
	if info["name"] != protocol.ServerName || info["version"] != "test" {
		t.Fatalf("unexpected serverInfo %#v", info)
	}
	if _, ok := first["capabilities"].(map[string]any)["tools"]; !ok {
		t.Fatalf("expected tools capability, got %#v", first["capabilities"])
	}

	if got := resultOf(t, responses[1])["protocolVersion"]; got != protocol.DefaultProtocolVersion {
		t.Fatalf("expected fallback to default version, got %v", got)
	}
	if responses[1]["id"] != float64(2) {
		t.Fatalf("expected id 2, got %v", responses[1]["id"])
	}
}

func TestServer_Ping(t *testing.T) {
	responses := runLines(t, &fakeHandler{}, `{"jsonrpc":"2.0","id":"p-1","method":"ping"}`)
	if len(responses) != 1 || responses[0]["id"] != "p-1" {
		t.Fatalf("unexpected ping response %#v", responses)
	}
	if len(resultOf(t, responses[0])) != 0 {
		t.Fatalf("expected empty ping result, got %#v", responses[0]["result"])
	}
}

func TestServer_ToolsListOrderAndSchemas(t *testing.T) {
	responses := runLines(t, &fakeHandler{}, `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	tools := resultOf(t, responses[0])["tools"].([]any)
	want := []string{protocol.ToolNameDownload, protocol.ToolNameSearch, protocol.ToolNameInfo}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, raw := range tools {
		tool := raw.(map[string]any)
		if tool["name"] != want[i] {
			t.Fatalf("tool %d = %v, want %s", i, tool["name"], want[i])
		}
		if desc, _ := tool["description"].(string); desc == "" {
			t.Fatalf("tool %s has no description", want[i])
		}
		schema := tool["inputSchema"].(map[string]any)
		required := schema["required"].([]any)
		if len(required) != 1 {
			t.Fatalf("tool %s: expected one required argument, got %v", want[i], required)
		}
	}
}

func TestServer_ToolsCallRoutesToHandler(t *testing.T) {
	h := &fakeHandler{}
	responses := runLines(t, h,
		callTool(1, protocol.ToolNameDownload, map[string]any{"query": "Imagine Dragons Believer"}),
		callTool(2, protocol.ToolNameSearch, map[string]any{"query": "believer"}),
		callTool(3, protocol.ToolNameInfo, map[string]any{"url": "https://www.youtube.com/watch?v=7wtfhZwyrcc"}),
	)
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}

	text, isError := toolText(t, responses[0])
	if isError || !strings.Contains(text, "Believer") || !strings.Contains(text, "Imagine Dragons") || !strings.HasSuffix(text, ".mp3") {
		t.Fatalf("unexpected download result %q (isError=%v)", text, isError)
	}
	if text, _ := toolText(t, responses[1]); text != "https://www.youtube.com/watch?v=7wtfhZwyrcc" {
		t.Fatalf("unexpected search result %q", text)
	}
	if text, _ := toolText(t, responses[2]); !strings.Contains(text, "Believer") {
		t.Fatalf("unexpected info result %q", text)
	}

	if len(h.downloads) != 1 || h.downloads[0] != "Imagine Dragons Believer" {
		t.Fatalf("unexpected handler calls %v", h.downloads)
	}
	if len(h.searches) != 1 || len(h.infos) != 1 {
		t.Fatalf("unexpected handler calls search=%v info=%v", h.searches, h.infos)
	}
}

func TestServer_WhitespaceQueryReachesHandler(t *testing.T) {
	h := &fakeHandler{}
	responses := runLines(t, h, callTool(1, protocol.ToolNameDownload, map[string]any{"query": "   "}))
	text, isError := toolText(t, responses[0])
	if isError || !strings.HasPrefix(text, "No results found") {
		t.Fatalf("unexpected result %q (isError=%v)", text, isError)
	}
}

func TestServer_ToolArgumentErrors(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing", args: map[string]any{}, want: "ERROR: MISSING_FIELD: query is required"},
		{name: "wrong type", args: map[string]any{"query": 42}, want: "ERROR: INVALID_FIELD: query must be a string"},
		{name: "unknown", args: map[string]any{"query": "x", "limit": 3}, want: "ERROR: INVALID_FIELD: unknown argument: limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &fakeHandler{}
			responses := runLines(t, h, callTool(1, protocol.ToolNameDownload, tc.args))
			text, isError := toolText(t, responses[0])
			if !isError || text != tc.want {
				t.Fatalf("got %q (isError=%v), want %q", text, isError, tc.want)
			}
			if len(h.downloads) != 0 {
				t.Fatal("handler must not run for invalid arguments")
			}
		})
	}
}

func TestServer_UnknownTool(t *testing.T) {
	responses := runLines(t, &fakeHandler{}, callTool(1, "play_music", map[string]any{}))
	text, isError := toolText(t, responses[0])
	if !isError || text != "ERROR: METHOD_NOT_FOUND: unknown tool: play_music" {
		t.Fatalf("unexpected result %q", text)
	}
}

func TestServer_ProtocolErrors(t *testing.T) {
	responses := runLines(t, &fakeHandler{},
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call"}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"arguments":{}}}`,
		`[{"jsonrpc":"2.0","id":5,"method":"ping"}]`,
		`{"jsonrpc":"1.0","id":6,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/unknown"}`,
	)
	if len(responses) != 6 {
		t.Fatalf("expected 6 responses, got %d", len(responses))
	}
	want := []float64{
		protocol.RPCMethodNotFound,
		protocol.RPCParseError,
		protocol.RPCInvalidParams,
		protocol.RPCInvalidParams,
		protocol.RPCInvalidRequest,
		protocol.RPCInvalidRequest,
	}
	for i, code := range want {
		if got := errorCodeOf(t, responses[i]); got != code {
			t.Fatalf("response %d: code %v, want %v", i, got, code)
		}
	}
	if responses[1]["id"] != nil {
		t.Fatalf("parse error must carry a null id, got %v", responses[1]["id"])
	}
}

func TestServer_HeaderFramingIsMirrored(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":7,"method":"ping"}`
	in := strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
	var out bytes.Buffer
	srv := NewServer(ServerOptions{Handler: &fakeHandler{}})
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	reader := bufio.NewReader(&out)
	payload, f, err := readStdioMessage(reader)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if f != framingHeader {
		t.Fatalf("expected header framing in reply, got %q", out.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(payload, &resp); err != nil || resp["id"] != float64(7) {
		t.Fatalf("unexpected reply %s (%v)", payload, err)
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func TestServer_StopsOnContextCancel(t *testing.T) {
	srv := NewServer(ServerOptions{Handler: &fakeHandler{}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- srv.Serve(ctx, blockingReader{}, &out) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

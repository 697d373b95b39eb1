package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"llm-jukebox/internal/protocol"
)

var toolOrder = []string{
	protocol.ToolNameDownload,
	protocol.ToolNameSearch,
	protocol.ToolNameInfo,
}

type toolHandler func(context.Context, map[string]interface{}) (toolCallResult, *toolExecutionError)

type toolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
	handler     toolHandler            `json:"-"`
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

type toolCallResult struct {
	Content           []toolContentItem `json:"content"`
	StructuredContent interface{}       `json:"structuredContent,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolExecutionError struct {
	Code      string
	Message   string
	Retryable bool
}

func (s *Server) buildToolRegistry() map[string]toolDefinition {
	return map[string]toolDefinition{
		protocol.ToolNameDownload: {
			Name:        protocol.ToolNameDownload,
			Description: "Search YouTube for music, download the first result as audio and save it to the music library directory.",
			InputSchema: queryInputSchema("Search query for music (artist, song, album, etc.)"),
			handler:     s.handleDownloadTool,
		},
		protocol.ToolNameSearch: {
			Name:        protocol.ToolNameSearch,
			Description: "Search YouTube for music and return the watch URL of the first result.",
			InputSchema: queryInputSchema("Search query for music (artist, song, album, etc.)"),
			handler:     s.handleSearchTool,
		},
		protocol.ToolNameInfo: {
			Name:        protocol.ToolNameInfo,
			Description: "Get title, uploader, duration, views, upload date and description of a YouTube video without downloading it.",
			InputSchema: urlInputSchema(),
			handler:     s.handleInfoTool,
		},
	}
}

func (s *Server) handleToolsList(id json.RawMessage) rpcResponse {
	tools := make([]toolDefinition, 0, len(s.tools))

	for _, name := range toolOrder {
		if tool, ok := s.tools[name]; ok {
			tools = append(tools, tool)
		}
	}

	if len(tools) != len(s.tools) {
		tools = tools[:0]
		names := make([]string, 0, len(s.tools))
		for name := range s.tools {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			tools = append(tools, s.tools[name])
		}
	}

	return resultResponse(id, map[string]interface{}{
		"tools": tools,
	})
}

func (s *Server) handleToolsCall(ctx context.Context, rawParams json.RawMessage, id json.RawMessage) rpcResponse {
	result, rpcErr := s.processToolsCall(ctx, rawParams)
	if rpcErr != nil {
		return rpcResponse{
			JSONRPC: jsonrpcVersion,
			ID:      id,
			Error:   rpcErr,
		}
	}
	return resultResponse(id, result)
}

func (s *Server) processToolsCall(ctx context.Context, rawParams json.RawMessage) (toolCallResult, *rpcError) {
	params, err := parseToolsCallParams(rawParams)
	if err != nil {
		canonicalCode := protocol.ErrorCodeInvalidField
		var vErr validationError
		if errors.As(err, &vErr) && vErr.canonicalCode != "" {
			canonicalCode = vErr.canonicalCode
		}
		return toolCallResult{}, &rpcError{
			Code:    protocol.RPCInvalidParams,
			Message: err.Error(),
			Data: &rpcErrorData{
				Code:      canonicalCode,
				Retryable: false,
			},
		}
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		return newToolErrorResult(toolExecutionError{
			Code:      protocol.ErrorCodeMethodNotFound,
			Message:   fmt.Sprintf("unknown tool: %s", params.Name),
			Retryable: false,
		}), nil
	}

	s.mu.Lock()
	initialized, negotiated := s.initialized, s.protocolVersion
	s.mu.Unlock()

	callID := uuid.NewString()
	logger := s.logger.With(
		zap.String("call_id", callID),
		zap.String("tool", params.Name),
		zap.String("protocol_version", negotiated),
	)
	if !initialized {
		logger.Debug("tools/call before notifications/initialized")
	}
	logger.Info("tool call started")
	start := time.Now()

	result, toolErr := tool.handler(ctx, params.Arguments)
	if toolErr != nil {
		logger.Warn("tool call rejected", zap.String("code", toolErr.Code), zap.String("message", toolErr.Message))
		return newToolErrorResult(*toolErr), nil
	}

	logger.Info("tool call finished", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func parseToolsCallParams(raw json.RawMessage) (toolsCallParams, error) {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return toolsCallParams{}, validationError{
			message:       "params is required",
			canonicalCode: protocol.ErrorCodeMissingField,
		}
	}

	var params toolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return toolsCallParams{}, validationError{
			message:       "invalid tools/call params",
			canonicalCode: protocol.ErrorCodeInvalidField,
		}
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return toolsCallParams{}, validationError{
			message:       "tools/call params.name is required",
			canonicalCode: protocol.ErrorCodeMissingField,
		}
	}
	if params.Arguments == nil {
		params.Arguments = map[string]interface{}{}
	}

	return params, nil
}

func newToolErrorResult(toolErr toolExecutionError) toolCallResult {
	text := fmt.Sprintf("ERROR: %s: %s", toolErr.Code, toolErr.Message)
	return toolCallResult{
		IsError: true,
		Content: []toolContentItem{
			{Type: "text", Text: text},
		},
		StructuredContent: map[string]interface{}{
			"error": map[string]interface{}{
				"code":      toolErr.Code,
				"message":   toolErr.Message,
				"retryable": toolErr.Retryable,
			},
		},
	}
}

func textResult(text string) toolCallResult {
	return toolCallResult{
		Content: []toolContentItem{{Type: "text", Text: text}},
	}
}

func (s *Server) handleDownloadTool(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	query, toolErr := requiredStringArgument(args, "query")
	if toolErr != nil {
		return toolCallResult{}, toolErr
	}
	return textResult(s.handler.Download(ctx, query)), nil
}

func (s *Server) handleSearchTool(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	query, toolErr := requiredStringArgument(args, "query")
	if toolErr != nil {
		return toolCallResult{}, toolErr
	}
	return textResult(s.handler.Search(ctx, query)), nil
}

func (s *Server) handleInfoTool(ctx context.Context, args map[string]interface{}) (toolCallResult, *toolExecutionError) {
	url, toolErr := requiredStringArgument(args, "url")
	if toolErr != nil {
		return toolCallResult{}, toolErr
	}
	return textResult(s.handler.Info(ctx, url)), nil
}

// requiredStringArgument validates a tool taking exactly one string argument.
// Blank values pass through; the handler answers them with its own message.
func requiredStringArgument(args map[string]interface{}, key string) (string, *toolExecutionError) {
	if err := assertNoUnknownArguments(args, map[string]struct{}{key: {}}); err != nil {
		return "", &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	value, present, err := parseRequiredString(args, key)
	if err != nil {
		return "", &toolExecutionError{Code: protocol.ErrorCodeInvalidField, Message: err.Error()}
	}
	if !present {
		return "", &toolExecutionError{Code: protocol.ErrorCodeMissingField, Message: key + " is required"}
	}
	return value, nil
}

func assertNoUnknownArguments(args map[string]interface{}, allowed map[string]struct{}) error {
	for key := range args {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("unknown argument: %s", key)
		}
	}
	return nil
}

func parseRequiredString(args map[string]interface{}, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%s must be a string", key)
	}
	return value, true, nil
}

func queryInputSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": description},
		},
		"required": []string{"query"},
	}
}

func urlInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "description": "YouTube video URL or video id"},
		},
		"required": []string{"url"},
	}
}

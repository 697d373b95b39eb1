// Package mcp serves the jukebox tools as an MCP server over stdio
// (JSON-RPC 2.0).
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"llm-jukebox/internal/protocol"
)

// ToolHandler is the workflow behind the tools. Every method returns the
// text shown to the caller and never fails.
type ToolHandler interface {
	Download(ctx context.Context, query string) string
	Search(ctx context.Context, query string) string
	Info(ctx context.Context, url string) string
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Handler ToolHandler
	Logger  *zap.Logger
	Version string
}

// Server answers one request at a time: a message is read, handled to
// completion and answered before the next one is read.
type Server struct {
	handler ToolHandler
	logger  *zap.Logger
	version string
	tools   map[string]toolDefinition

	mu              sync.Mutex
	initialized     bool
	protocolVersion string
}

func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}
	s := &Server{
		handler:         opts.Handler,
		logger:          logger.Named("mcp"),
		version:         version,
		protocolVersion: protocol.DefaultProtocolVersion,
	}
	s.tools = s.buildToolRegistry()
	return s
}

type inbound struct {
	payload []byte
	framing framing
	err     error
}

// Serve reads requests from in and writes responses to out until in reaches
// EOF or ctx is cancelled; both end with a nil error. out should be the real
// process stdout captured before any collaborator call redirects it.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	messages := make(chan inbound)
	next := make(chan struct{})
	go func() {
		defer close(messages)
		reader := bufio.NewReader(in)
		for {
			payload, f, err := readStdioMessage(reader)
			select {
			case messages <- inbound{payload: payload, framing: f, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			// wait until the previous message is fully answered
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("stdio server started", zap.String("version", s.version))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stdio server stopping", zap.Error(ctx.Err()))
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.err != nil {
				if errors.Is(msg.err, io.EOF) {
					s.logger.Info("stdin closed")
					return nil
				}
				s.logger.Error("read message", zap.Error(msg.err))
				return fmt.Errorf("read message: %w", msg.err)
			}

			resp := s.handleMessage(ctx, msg.payload)
			if ctx.Err() != nil {
				return nil
			}
			if resp != nil {
				if err := s.write(out, msg.framing, *resp); err != nil {
					s.logger.Error("write response", zap.Error(err))
					return fmt.Errorf("write response: %w", err)
				}
			}
			select {
			case next <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Server) write(out io.Writer, f framing, resp rpcResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		payload, _ = json.Marshal(errorResponse(resp.ID, protocol.RPCInternalError, "internal error", nil))
	}
	return writeStdioMessage(out, f, payload)
}

// handleMessage returns the response for payload, or nil for notifications.
func (s *Server) handleMessage(ctx context.Context, payload []byte) *rpcResponse {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		resp := errorResponse(nil, protocol.RPCInvalidRequest, "batch requests are not supported", nil)
		return &resp
	}

	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("parse error", zap.Error(err))
		resp := errorResponse(nil, protocol.RPCParseError, "parse error", nil)
		return &resp
	}
	if req.JSONRPC != jsonrpcVersion || strings.TrimSpace(req.Method) == "" {
		if req.isNotification() {
			return nil
		}
		resp := errorResponse(req.ID, protocol.RPCInvalidRequest, "invalid request", nil)
		return &resp
	}

	resp, ok := s.dispatch(ctx, req)
	if req.isNotification() || !ok {
		return nil
	}
	return &resp
}

// dispatch routes one request. ok is false when nothing must be sent back.
func (s *Server) dispatch(ctx context.Context, req rpcRequest) (rpcResponse, bool) {
	switch req.Method {
	case protocol.RPCMethodInitialize:
		return s.handleInitialize(req), true
	case protocol.RPCMethodNotificationsInitialized:
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		return rpcResponse{}, false
	case protocol.RPCMethodNotificationsCancelled:
		// requests are answered before the next one is read, so there is
		// never anything in flight to cancel
		return rpcResponse{}, false
	case protocol.RPCMethodPing:
		return resultResponse(req.ID, map[string]interface{}{}), true
	case protocol.RPCMethodToolsList:
		return s.handleToolsList(req.ID), true
	case protocol.RPCMethodToolsCall:
		return s.handleToolsCall(ctx, req.Params, req.ID), true
	default:
		if req.isNotification() {
			return rpcResponse{}, false
		}
		s.logger.Warn("unknown method", zap.String("method", req.Method))
		return methodNotFound(req.ID, req.Method), true
	}
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

func (s *Server) handleInitialize(req rpcRequest) rpcResponse {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, protocol.RPCInvalidParams, "invalid initialize params", &rpcErrorData{
				Code: protocol.ErrorCodeInvalidField,
			})
		}
	}

	negotiated := negotiateProtocolVersion(params.ProtocolVersion)
	s.mu.Lock()
	s.protocolVersion = negotiated
	s.mu.Unlock()

	s.logger.Info("initialize",
		zap.String("client", params.ClientInfo.Name),
		zap.String("client_version", params.ClientInfo.Version),
		zap.String("protocol_version", negotiated),
	)

	return resultResponse(req.ID, map[string]interface{}{
		"protocolVersion": negotiated,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{"listChanged": false},
		},
		"serverInfo": map[string]interface{}{
			"name":    protocol.ServerName,
			"version": s.version,
		},
	})
}

func negotiateProtocolVersion(requested string) string {
	requested = strings.TrimSpace(requested)
	for _, v := range protocol.SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return protocol.DefaultProtocolVersion
}

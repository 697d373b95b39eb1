package protocol

const (
	ToolNameDownload = "download_youtube_music"
	ToolNameSearch   = "search_youtube_music"
	ToolNameInfo     = "get_youtube_info"
)

const (
	RPCMethodInitialize               = "initialize"
	RPCMethodNotificationsInitialized = "notifications/initialized"
	RPCMethodNotificationsCancelled   = "notifications/cancelled"
	RPCMethodPing                     = "ping"
	RPCMethodToolsList                = "tools/list"
	RPCMethodToolsCall                = "tools/call"
)

const (
	ErrorCodeInvalidField   = "INVALID_FIELD"
	ErrorCodeMissingField   = "MISSING_FIELD"
	ErrorCodeMethodNotFound = "METHOD_NOT_FOUND"
)

// JSON-RPC 2.0 error codes.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
)

const (
	ServerName             = "LLM Jukebox"
	DefaultProtocolVersion = "2025-06-18"
)

// SupportedProtocolVersions lists the MCP revisions the stdio server accepts,
// newest first.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

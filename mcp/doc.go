// Package mcp implements the Model Context Protocol wire layer used by
// BoardPilot: newline-delimited JSON-RPC 2.0 over a subprocess's
// stdin/stdout.
//
// The package is split by concern:
//   - protocol: message envelope and the initialize/tools/list/tools/call
//     request and result shapes
//   - client: synchronous request/response exchange over a Transport,
//     one outstanding request per connection
//   - transports: subprocess stdio, plus a redialing wrapper
//   - server: the serve loop used by the tool-server binaries
//
// Tool-level failures travel inside result payloads; JSON-RPC error
// objects are reserved for protocol failures (parse error, unknown
// method, internal error).
package mcp

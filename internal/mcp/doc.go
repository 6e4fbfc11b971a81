// Package mcp exposes the knowledge base over the Model Context Protocol.
//
// The server registers two tools on the official MCP SDK server:
//
//   - ingest_document: chunk a markdown document, embed the prose, and
//     persist the chunks with their code blocks in metadata. Returns a
//     per-chunk report; a partially failed ingestion is reported, not
//     rolled back.
//   - search_knowledge: semantic search over stored chunks. Results are
//     rendered with code blocks substituted back into the prose.
//
// Handlers distinguish agent errors from system errors the way the MCP
// SDK expects: bad input (a reserved metadata key, an empty query) comes
// back as a CallToolResult with IsError set, so the calling agent can read
// the message and correct itself; infrastructure failures propagate as Go
// errors and become protocol-level failures.
package mcp

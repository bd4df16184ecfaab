// Package mcp exposes the document pipeline as Model Context Protocol tools.
package mcp

import "errors"

var (
	ErrNilPorts          = errors.New("mcp: ports are required")
	ErrUnknownTool       = errors.New("mcp: unknown tool")
	ErrMissingClassifier = errors.New("mcp: classifier is required")
	ErrMissingIngester   = errors.New("mcp: ingester is required")
	ErrMissingSearcher   = errors.New("mcp: searcher is required")
)

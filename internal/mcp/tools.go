package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Tool is one of the fixed set of capabilities the server can expose.
type Tool int

const (
	ToolPreOCR Tool = iota + 1
	ToolIngest
	ToolVectorSearch
)

// AllTools lists every tool in registration order.
var AllTools = []Tool{ToolPreOCR, ToolIngest, ToolVectorSearch}

const defaultTopK = 5

func (t Tool) Name() string {
	switch t {
	case ToolPreOCR:
		return "preocr.check_document"
	case ToolIngest:
		return "documents.ingest"
	case ToolVectorSearch:
		return "vector.search"
	default:
		return fmt.Sprintf("Tool(%d)", int(t))
	}
}

// ParseTool maps a tool name back to its tag.
func ParseTool(name string) (Tool, error) {
	for _, t := range AllTools {
		if t.Name() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

type PreOCRInput struct {
	FilePath string `json:"file_path" jsonschema:"path of the file to classify"`
}

type PreOCROutput struct {
	NeedsOCR   bool    `json:"needs_ocr"`
	Confidence float64 `json:"confidence"`
	ReasonCode string  `json:"reason_code"`
}

type IngestInput struct {
	FilePath     string `json:"file_path" jsonschema:"path of the file to ingest"`
	DocumentName string `json:"document_name,omitempty" jsonschema:"display name, defaults to the file name"`
}

type IngestOutput struct {
	Status         string `json:"status"`
	DocumentName   string `json:"document_name"`
	ChunksIngested int    `json:"chunks_ingested"`
	Generation     uint64 `json:"generation"`
}

type VectorSearchInput struct {
	Query string `json:"query" jsonschema:"text to search for in the active document"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
}

type VectorSearchOutput struct {
	Results []MatchOutput `json:"results"`
	Count   int           `json:"count"`
}

type MatchOutput struct {
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
	DocumentName string  `json:"document_name"`
}

func (s *Server) registerTool(t Tool) error {
	switch t {
	case ToolPreOCR:
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        t.Name(),
			Description: "Check whether a document needs OCR before ingestion",
		}, s.handlePreOCR)
	case ToolIngest:
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        t.Name(),
			Description: "Ingest a document, replacing the currently indexed one",
		}, s.handleIngest)
	case ToolVectorSearch:
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        t.Name(),
			Description: "Search the active document for relevant chunks",
		}, s.handleVectorSearch)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTool, t.Name())
	}
	log.Debug().Str("tool", t.Name()).Msg("Registered MCP tool")
	return nil
}

func (s *Server) handlePreOCR(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input PreOCRInput,
) (*mcp.CallToolResult, PreOCROutput, error) {
	d, err := s.ports.Classifier.Classify(input.FilePath)
	if err != nil {
		return nil, PreOCROutput{}, err
	}
	return nil, PreOCROutput{NeedsOCR: d.NeedsOCR, Confidence: d.Confidence, ReasonCode: string(d.Reason)}, nil
}

func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	res, err := s.ports.Ingester.Ingest(ctx, input.FilePath, input.DocumentName)
	if err != nil {
		return nil, IngestOutput{}, err
	}
	return nil, IngestOutput{
		Status:         "success",
		DocumentName:   res.Document.Name,
		ChunksIngested: res.ChunkCount,
		Generation:     res.Generation,
	}, nil
}

func (s *Server) handleVectorSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input VectorSearchInput,
) (*mcp.CallToolResult, VectorSearchOutput, error) {
	k := input.TopK
	if k <= 0 {
		k = defaultTopK
	}

	matches, err := s.ports.Searcher.Search(ctx, input.Query, k)
	if err != nil {
		return nil, VectorSearchOutput{}, err
	}

	output := VectorSearchOutput{Results: make([]MatchOutput, len(matches)), Count: len(matches)}
	for i, m := range matches {
		output.Results[i] = MatchOutput{Text: m.Text, Score: m.Score, DocumentName: m.DocumentName}
	}
	return nil, output, nil
}

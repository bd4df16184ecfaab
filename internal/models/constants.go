package models

const (
	ThinkTag = `(?s)<think>.*?</think>`

	// ChunkSeparator joins semantic units inside a chunk and the overlap prefix to its chunk.
	ChunkSeparator = "\n\n"
	// ContextSeparator joins retrieved chunk texts inside the prompt context.
	ContextSeparator = "\n\n"

	NoMatchMessage       = "I could not find relevant information in the document."
	LowConfidenceMessage = "I don't know. The document does not contain this information."

	SystemPrompt = "You are a helpful AI assistant."
)

var (
	AnswerPromptTemplate = `You are answering questions about a single document.
Answer ONLY using the context below.

Context:
%s

Question:
%s

If the answer is not present in the context, say "I don't know".
`
)

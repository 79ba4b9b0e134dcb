// Package mcptools exposes the tender knowledge base and answering flow
// as MCP tools, so assistants can query the indexed corpus directly.
package mcptools

// SearchKnowledgeInput defines the input parameters for the search_knowledge tool.
type SearchKnowledgeInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query against the indexed knowledge base"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// MinScore is the minimum similarity threshold (0-1).
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum=0,maximum=1,description=Minimum similarity score threshold (0-1)"`
}

// SearchKnowledgeOutput contains the ranked search results.
type SearchKnowledgeOutput struct {
	// Results is the list of matching chunks, best match first.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g. no match above threshold).
	Message string `json:"message,omitempty"`
}

// SearchResult is a single chunk match from semantic search.
type SearchResult struct {
	// ChunkID identifies the chunk; answers cite these ids as sources.
	ChunkID string `json:"chunk_id"`
	// SourcePath is the document the chunk came from.
	SourcePath string `json:"source_path"`
	// Position is the chunk's ordinal within its document.
	Position int `json:"position"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
	// Text is the chunk content.
	Text string `json:"text"`
}

// AnswerQuestionInput defines the input parameters for the answer_question tool.
type AnswerQuestionInput struct {
	// Question is the tender question to answer.
	Question string `json:"question" jsonschema:"required,description=The tender questionnaire question to answer from the knowledge base"`
	// Category is an optional question category used to frame the answer.
	Category string `json:"category,omitempty" jsonschema:"description=Optional question category (e.g. Sécurité, SLA)"`
}

// AnswerQuestionOutput is the structured answer for one question.
type AnswerQuestionOutput struct {
	// Response is the answer text, in the questionnaire's language.
	Response string `json:"response"`
	// Confidence is the model's self-assessed confidence (0-1).
	Confidence float64 `json:"confidence"`
	// Sources lists the chunk ids the answer drew on.
	Sources []string `json:"sources"`
	// ContextChunks is how many chunks were retrieved for the question.
	ContextChunks int `json:"context_chunks"`
}

// IndexStatusInput defines the input parameters for the index_status tool.
// The tool takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput summarizes the state of the vector index.
type IndexStatusOutput struct {
	// Documents is the number of indexed documents.
	Documents int `json:"documents"`
	// Chunks is the number of chunk points in the collection.
	Chunks int `json:"chunks"`
	// LastIndexed is the most recent indexing timestamp, RFC 3339.
	LastIndexed string `json:"last_indexed,omitempty"`
	// SourcePaths lists every indexed document path.
	SourcePaths []string `json:"source_paths"`
}

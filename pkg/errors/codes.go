package errors

// Common errors (service 00).
var (
	ErrInternal      = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), 500, "Internal server error"))
	ErrPanic         = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), 500, "Internal server error (panic)"))
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), 404, "Route not found"))
	ErrUnauthorized  = Register(New(MakeCode(ServiceCommon, CategoryAuth, 1), 401, "Invalid or missing API key"))
)

// RAG engine errors (service 20).
var (
	// Request errors (category 01).
	ErrInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), 400, "Invalid request parameters"))
	ErrUnknownBook    = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), 400, "Unknown book"))

	// Configuration errors (category 12).
	ErrInvalidConfig    = Register(New(MakeCode(ServiceRAG, CategoryConfig, 1), 500, "Invalid RAG configuration"))
	ErrChunkOverlap     = Register(New(MakeCode(ServiceRAG, CategoryConfig, 2), 500, "Chunk overlap must be smaller than chunk size"))
	ErrDocumentNotFound = Register(New(MakeCode(ServiceRAG, CategoryConfig, 3), 500, "Document file not found"))

	// Lifecycle errors (category 07).
	ErrEngineNotReady      = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), 503, "Engine not initialized"))
	ErrAlreadyInitializing = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), 500, "Initialization already in progress"))
	ErrIngestionFailed     = Register(New(MakeCode(ServiceRAG, CategoryInternal, 3), 500, "Document ingestion failed"))

	// Retrieval errors (category 07).
	ErrEmbeddingFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 4), 500, "Failed to embed query"))
	ErrRetrievalFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 5), 500, "Similarity search failed"))

	// Generation errors (category 07 / 10 / 11).
	ErrGenerationFailed   = Register(New(MakeCode(ServiceRAG, CategoryInternal, 6), 500, "Answer generation failed"))
	ErrStreamInterrupted  = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1), 502, "Generation stream interrupted"))
	ErrBackendUnavailable = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), 503, "LLM backend unavailable"))
	ErrQueryTimeout       = Register(New(MakeCode(ServiceRAG, CategoryTimeout, 1), 408, "Query timeout"))
)

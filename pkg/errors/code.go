package errors

// Service codes (AA)
const (
	// ServiceCommon is for common/base errors shared by all components.
	ServiceCommon = 0

	// ServiceRAG is for the RAG engine and its HTTP surface.
	ServiceRAG = 20
)

// Category codes (BB)
const (
	// CategorySuccess indicates successful operation.
	CategorySuccess = 0

	// CategoryRequest indicates request/validation errors.
	CategoryRequest = 1

	// CategoryAuth indicates authentication errors.
	CategoryAuth = 2

	// CategoryResource indicates resource not found errors.
	CategoryResource = 4

	// CategoryInternal indicates internal server errors.
	CategoryInternal = 7

	// CategoryCache indicates cache errors.
	CategoryCache = 9

	// CategoryNetwork indicates network errors.
	CategoryNetwork = 10

	// CategoryTimeout indicates timeout errors.
	CategoryTimeout = 11

	// CategoryConfig indicates configuration errors.
	CategoryConfig = 12
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, seq int) int {
	return service*100000 + category*1000 + seq
}

// ServiceOf extracts the service code (AA) from an error code.
func ServiceOf(code int) int {
	return code / 100000
}

// CategoryOf extracts the category code (BB) from an error code.
func CategoryOf(code int) int {
	return (code / 1000) % 100
}

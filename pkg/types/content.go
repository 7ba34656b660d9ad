package types

// ContentType classifies the text handed to the indexing pipeline.
// It drives chunk-boundary selection and is stored with every chunk
// so queries can filter on it.
type ContentType string

const (
	ContentTypeCode          ContentType = "code"
	ContentTypeMarkdown      ContentType = "markdown"
	ContentTypePlainText     ContentType = "plaintext"
	ContentTypeDocumentation ContentType = "documentation"
	ContentTypeOther         ContentType = "other"
)

// Content is a unit of indexable text. ID is the stable key: a normalized
// file path or a logical content id. Re-indexing the same ID replaces all
// chunks previously stored for it.
type Content struct {
	ID         string
	Text       string
	Type       ContentType
	SourcePath string            // Normalized; empty for non-file content
	Metadata   map[string]string // Copied onto every chunk produced
}

// Known metadata keys. Ingesters are extensible, so the metadata map is an
// open bag; these are the keys the built-in ingesters emit.
const (
	MetaSymbol    = "symbol"
	MetaSignature = "signature"
	MetaStartLine = "startLine"
	MetaEndLine   = "endLine"
	MetaLanguage  = "language"
	MetaChunkKind = "chunkKind"
	MetaTitle     = "title"
)

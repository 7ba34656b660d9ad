// Package enrich turns free-text prompts into structural code context.
//
// ExtractSymbols pulls candidate PascalCase identifiers out of a prompt,
// preferring longer names and capping fan-out. Enrich resolves each
// candidate against the graph and pulls in its implementations, derived
// types, members, or callers depending on the symbol's kind, each group
// capped to bound result size. Render produces a deterministic text block
// for inclusion in an LLM prompt.
package enrich

// Package types provides shared type definitions for docindex.
//
// Source documents are classified by suffix into a converter family:
//
//	fam, err := types.Classify("contracts/lease.PDF") // FamilyPDF
//
// Every source has exactly one converted artifact whose path is a pure
// function of the source path and the active DOCX converter:
//
//	types.ArtifactPath("memo.docx", types.DocxMarkitdown) // "memo.docx.md"
//	types.ArtifactPath("memo.docx", types.DocxSuperdoc)   // "memo.docx.json"
//	types.ArtifactPath("inbox.eml", types.DocxSuperdoc)   // "inbox.eml.md"
//
// Paths handled here are slash-separated and relative to the index root.
package types

// Package docs is the document-search collaborator. Storage and upload
// live elsewhere; this package only answers name queries against a user's
// document index.
package docs

import (
	"context"
	"strings"
)

// Document is one indexed user document. FileType is a MIME type such as
// "image/png" or "application/pdf".
type Document struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	FileType string `json:"file_type"`
}

// Searcher finds a user's documents by name.
type Searcher interface {
	Search(ctx context.Context, userID, query string) ([]Document, error)
}

// MemorySearcher is an in-memory Searcher with case-insensitive substring
// matching, used for tests and local development.
type MemorySearcher struct {
	byUser map[string][]Document
}

// NewMemorySearcher creates an empty in-memory document index.
func NewMemorySearcher() *MemorySearcher {
	return &MemorySearcher{byUser: make(map[string][]Document)}
}

// Add indexes a document for a user.
func (m *MemorySearcher) Add(userID string, doc Document) {
	m.byUser[userID] = append(m.byUser[userID], doc)
}

// Search returns the user's documents whose names contain the query.
func (m *MemorySearcher) Search(_ context.Context, userID, query string) ([]Document, error) {
	q := strings.ToLower(query)
	var out []Document
	for _, doc := range m.byUser[userID] {
		if strings.Contains(strings.ToLower(doc.Name), q) {
			out = append(out, doc)
		}
	}
	return out, nil
}

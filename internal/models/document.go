package models

// Document is a PDF file found in the input directory together with the
// text extracted from it.
type Document struct {
	Name    string
	Path    string
	Content string
	Pages   int
}

type ProcessedDocument struct {
	Document
	Chunks []string
}

// Record is a stored chunk as returned by a similarity search.
type Record struct {
	ID       string
	Position int
	Content  string
	Score    float32
}

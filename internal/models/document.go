package models

// Document is one page (or page-less file) of the regulatory corpus as read by the loader.
type Document struct {
	ID       string
	Source   string
	Title    string
	Page     int
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks []string
}

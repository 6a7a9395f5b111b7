package output

import "encoding/json"

// JSONFormatter outputs the document as indented JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format marshals the document as indented JSON.
func (f *JSONFormatter) Format(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Extension returns the file extension for JSON output.
func (f *JSONFormatter) Extension() string {
	return "json"
}

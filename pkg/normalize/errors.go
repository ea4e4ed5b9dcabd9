package normalize

import "fmt"

// NormalizationError reports a section referencing an event index outside the document.
type NormalizationError struct {
	Section string
	Index   int
	Events  int
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("section %q references event %d, document has %d events", e.Section, e.Index, e.Events)
}

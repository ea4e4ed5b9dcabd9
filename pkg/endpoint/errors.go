package endpoint

import "fmt"

// DiscoveryError reports that the endpoint list could not be obtained.
// It is fatal to an ingestion run: without endpoints no query can be fetched.
type DiscoveryError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("endpoint discovery from %s failed", e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

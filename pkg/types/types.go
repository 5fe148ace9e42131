package types

import "time"

// ClassificationResult is what the brand API returned for one description
type ClassificationResult struct {
	// Request is the description as echoed back by the service. Empty if the service did not echo it.
	Request string

	// Label is the predicted brand, displayed verbatim
	Label string

	// Latency is the time the user waited for the response
	Latency time.Duration
}

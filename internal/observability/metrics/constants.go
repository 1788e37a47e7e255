// Package metrics provides Prometheus collectors for the line walk service.
//
// Every Record method is safe to call on a nil receiver so components can run
// without a registry in tests and when metrics are disabled.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Histogram bucket layout shared by the duration metrics: 1ms doubling up to ~16s.
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2
	BucketCount15  = 15
)

// StatusLabel maps an error to the status label value.
func StatusLabel(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

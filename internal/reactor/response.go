package reactor

import "fmt"

// responseBody is the fixed payload returned for every request. It never
// changes at runtime, so the response bytes below are computed once and
// shared read-only across every worker and connection.
const responseBody = "Vrypt"

// BuildResponse returns the immutable, process-lifetime HTTP/1.1 response
// bytes every connection writes back after detecting a complete request.
// Workers hold a non-owning view of the returned slice; it is never mutated
// after construction, so no synchronization is needed to share it.
func BuildResponse() []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: %d\r\nConnection: keep-alive\r\n\r\n%s",
		len(responseBody), responseBody,
	))
}

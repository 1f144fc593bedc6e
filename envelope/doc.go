// Package envelope defines the response envelope returned by tool handlers.
//
// An envelope is the handler's business fields plus a meta object carrying
// the ETag, last-modified timestamp, cache and rate-limit information,
// optional paging, and a next-steps hint. On the wire the business fields and
// meta are flattened into a single JSON object.
//
// The package also provides SHA-256 content ETags over canonical JSON and
// opaque base64 pagination cursors.
package envelope

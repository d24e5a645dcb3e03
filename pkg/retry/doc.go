// Package retry provides bounded-attempt retry with pluggable backoff.
// The Reddit API client uses it around listing calls; the download path
// has its own fixed-interval retry contract and does not.
package retry

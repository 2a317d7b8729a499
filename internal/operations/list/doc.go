// Package list handles S3 object listing operations.
// This includes single-page listing with continuation tokens, used to expand
// prefixes incrementally, and channel-based streaming of a whole prefix.
package list

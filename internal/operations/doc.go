// Package operations groups the single-purpose S3 operations the copy
// engine is built from: list expands prefixes, copy copies one object and
// delete removes a verified source.
package operations

// Package copy copies single S3 objects on behalf of a copy run.
//
// Copier.CopyOne reads the source headers, ACL and tags, merges each with
// the caller's values under a Directive, resolves the target key from a
// template, lets interceptors observe or override the request, and issues
// a server-side copy. Copies that change region, storage class or
// encryption are split into UploadPartCopy parts above the chunk size; all
// others use a single CopyObject up to the S3 limit.
//
// When asked to delete the source, the copier compares the stored checksums
// of source and target first and only deletes on a match.
//
// Body adapts a Copier to the hierarchical task queue and counts results.
package copy

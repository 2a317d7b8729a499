// Package validation checks copy requests before any S3 call is made:
// bucket names, object keys, and the headers, ACL and tags a caller
// supplies for the copies.
//
// Object keys are held only to the limits S3 itself enforces. A key such
// as "release..v2/a.txt" or "/abs" is an ordinary S3 key and is accepted.
package validation

// Package hierarchy turns prefix listings into a growing task list.
//
// A task whose key ends in "/" is a container. Processing a container lists
// one page under its prefix, inserts one leaf task per listed object right
// after the container, and, when the listing was truncated, one more
// container that resumes from the continuation token. The continuation sits
// behind the page's leaves, so the task list follows listing order and a
// prefix is walked depth first relative to its siblings.
package hierarchy

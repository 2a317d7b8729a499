// Package queue implements a bounded-concurrency runner over an ordered task
// list that can grow while it runs.
//
// New tasks are always placed relative to an existing task id rather than an
// index, so expansions issued by running tasks keep their depth-first order
// even though finished tasks leave the list concurrently.
package queue

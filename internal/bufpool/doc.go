// Package bufpool implements a bounded, thread-safe pool of reusable byte
// buffers for the connection handler's read and write paths.
//
// Acquire never blocks (callers get a pooled buffer or a freshly allocated
// one); Release never blocks either (a buffer that outgrew twice the pool's
// nominal capacity is simply dropped rather than returned, so one enormous
// pipeline batch can't permanently bloat every future buffer).
package bufpool

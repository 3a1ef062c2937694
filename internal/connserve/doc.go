// Package connserve implements the per-connection read-parse-dispatch-
// encode-write loop. One Conn owns one net.Conn and runs entirely on its own
// goroutine; pipelined requests (several commands arriving before their
// replies are read) are supported naturally because Conn keeps parsing the
// same read buffer until it runs out of complete frames before writing
// anything back.
//
// The read buffer comes from internal/bufpool and goes back to it when the
// connection ends; a buffer that grew past twice the pool's nominal size is
// dropped there instead of being pooled.
package connserve

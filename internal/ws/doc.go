// Package ws bridges WebSocket connections to interactive shells.
//
// Every accepted connection gets its own shell running in a pseudo-terminal,
// rooted at the working directory of the project named by the last segment
// of the request path. Messages are binary frames whose first byte is a tag:
//
//	0  raw terminal bytes, in both directions
//	1  JSON window size {"rows","cols","pixel_width","pixel_height"}, client to server
//
// A session runs three goroutines. readPump blocks on the terminal and
// queues output frames, writePump is the only writer on the connection, and
// route applies client frames in arrival order. Whichever path ends the
// session first runs teardown, which kills the shell, closes the connection
// and releases the terminal exactly once.
package ws

// Package logs reads the scenevibe log file for the `scenevibe logs` command.
//
// Tail returns the last N lines with the byte offset where reading stopped;
// Follow polls from that offset and hands each new line to a callback until
// the context ends. Memory stays bounded by the line limit regardless of file
// size, and a log file truncated by rotation is read again from the start.
package logs

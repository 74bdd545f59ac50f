// Package ime provides the input method host that key processors and
// candidate filters run inside.
//
// # Architecture Overview
//
// A platform front-end (IBus on Linux) delivers key events to a Host. The
// Host offers every event to its registered processors first; a processor
// that returns Accepted consumes the event and the default composition
// handling is skipped:
//
//	Key Event → [processors...] → default handling → Commit / Preedit
//	                                    ↓
//	                     Translator → Filter → Candidate page
//
// Processors and filters only see the Engine and Context interfaces, so the
// same code runs against the in-memory Host and against test fakes.
//
// # Session Model
//
// A Session is the editing state of one focused input field: the
// composition buffer, boolean switches such as "ascii_mode", and the
// history of committed text. The IBus engine starts a session on focus or
// on the first key and ends it when focus leaves.
//
// # Concurrency
//
// Host and Session are not synchronised. Processors call back into the Host
// while a key is being processed, so the front-end serialises all calls to
// one Host (the IBus engine holds a mutex per engine instance).
package ime

// Package history keeps a journal of pipeline runs in a bbolt file under the
// XDG data directory. Failed runs keep their working directory for
// diagnosis; the journal remembers where, so it can be listed and cleaned
// later.
package history

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify implements the change signal behind the long-poll endpoint.

# Usage

One Broadcaster is shared by all handlers:

	changes := notify.New()

	// after committing a round lifecycle change
	changes.Notify()

	// in the long-poll handler
	version, err := changes.Wait(r.Context(), since)

Wait returns as soon as the version exceeds the caller's last-seen value, or
when the request context is cancelled (timeout, client gone). Either way the
caller gets a version it can hand back to the client for the next poll.

Versions are process-local and reset on restart; clients treat a version
smaller than their own as a restart and refetch.
*/
package notify

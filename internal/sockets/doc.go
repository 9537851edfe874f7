// Package sockets
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw non-blocking TCP socket helpers for the hub event loop. Descriptors are
// plain ints so they can be registered directly with a reactor.EventSource.
package sockets

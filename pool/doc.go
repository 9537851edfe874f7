// Package pool
// Author: momentics <momentics@gmail.com>
//
// Receive-buffer pooling for the hub event loop.
// A BufferPool is a bounded FIFO of fixed-size byte slices guarded by a short
// mutex; an empty pool allocates and a full pool discards on release, so the
// pool never blocks and never fails.
package pool

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness-multiplexing abstraction used by the
// hub event loop, with an edge-triggered epoll backend on linux and a
// level-triggered poll(2) backend on every unix system.
package reactor

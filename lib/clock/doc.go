// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides a minimal time abstraction so that code
// depending on wall time (audit timestamps, backup names, retry
// backoff) can be tested deterministically.
//
// [Real] returns a Clock backed by the time package. [Fake] returns a
// test clock whose time only moves under test control: Advance moves
// time forward and fires pending After timers, Set jumps without
// firing them.
package clock

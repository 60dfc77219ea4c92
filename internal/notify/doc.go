// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package notify routes server-initiated notifications by method name.
//
// The Dispatcher owns an explicit method -> Handler table built once at
// construction. Progress notifications go to the progress registry; the
// window_show_* family and window/showMessage go to a Sink that queues the
// message for the UI goroutine. Params are decoded into typed structs and
// validated; anything that does not decode is dropped and logged at debug
// level. A misbehaving server can never make Route fail.
package notify

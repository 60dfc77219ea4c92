// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader provides a reader that passes data through unchanged while
// remembering the last complete line. The launcher wraps the language server's
// stderr with it so the last thing the server printed can be reported when it
// exits unexpectedly.
package teereader

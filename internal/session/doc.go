// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package session connects to a language server over JSON-RPC and feeds its
// notifications into a progress registry and a UI sink.
//
// Requests from the server are answered with MethodNotFound, except
// window/workDoneProgress/create which is acknowledged so standard servers
// keep going. Commands from the host are forwarded unchanged with
// ExecuteCommand.
package session

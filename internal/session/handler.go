// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/sourcegraph/jsonrpc2"
)

var _ jsonrpc2.Handler = (*handler)(nil)

// handler receives everything the server sends. jsonrpc2 calls it serially on
// the read loop, so notifications reach the dispatcher in arrival order.
type handler struct {
	dispatch *notify.Dispatcher
}

// Handle implements jsonrpc2.Handler.
func (h *handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}

		h.dispatch.Route(ctx, req.Method, params)

		return
	}

	var err error

	switch req.Method {
	case methodWorkDoneProgress:
		err = conn.Reply(ctx, req.ID, nil)
	default:
		ctxlog.Debug(ctx, "rejecting server request", "method", req.Method, "id", req.ID.String())
		err = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		})
	}

	if err != nil {
		ctxlog.Debug(ctx, "failed to reply to server request", "method", req.Method, "error", err)
	}
}

// rpcLogger routes jsonrpc2 connection messages into the context logger.
type rpcLogger struct {
	ctx context.Context //nolint:containedctx
}

// Printf implements jsonrpc2.Logger.
func (l rpcLogger) Printf(format string, v ...any) {
	ctxlog.Debug(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "jsonrpc2")
}

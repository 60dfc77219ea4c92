// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package cmdstate

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/matt-FFFFFF/lspbridge/internal/tui"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"go.uber.org/goleak"
)

func newCmd(t *testing.T, flags map[string]string) *cli.Command {
	t.Helper()

	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: ConfigFlag, Value: config.DefaultFileName},
			&cli.StringFlag{Name: LogLevelFlag},
			&cli.StringFlag{Name: UIFlag},
		},
	}

	for k, v := range flags {
		require.NoError(t, cmd.Set(k, v))
	}

	return cmd
}

func memFs(t *testing.T, files map[string]string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	stubs := gostub.Stub(&config.FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)
}

func keepLevel(t *testing.T) {
	t.Helper()

	prev := ctxlog.LevelVar.Level()
	t.Cleanup(func() { ctxlog.LevelVar.Set(prev) })
}

func TestShutdown(t *testing.T) {
	assert.Nil(t, ShutdownRequested(context.Background()))

	ctx, shutdown := WithShutdown(context.Background())
	ch := ShutdownRequested(ctx)
	require.NotNil(t, ch)

	select {
	case <-ch:
		t.Fatal("shutdown requested too early")
	default:
	}

	shutdown()
	shutdown()

	_, open := <-ch
	assert.False(t, open)
}

func TestLoadConfig(t *testing.T) {
	memFs(t, map[string]string{
		"custom.yaml": "ui:\n  mode: tui\nlog:\n  level: info\n",
		"bad.yaml":    "ui:\n  mode: fancy\n",
	})

	tests := []struct {
		name      string
		flags     map[string]string
		wantMode  string
		wantLevel string
		wantErr   bool
	}{
		{name: "defaults", wantMode: config.UIModeAuto},
		{name: "file", flags: map[string]string{ConfigFlag: "custom.yaml"}, wantMode: config.UIModeTUI, wantLevel: "info"},
		{
			name:      "flags override file",
			flags:     map[string]string{ConfigFlag: "custom.yaml", UIFlag: "plain", LogLevelFlag: "debug"},
			wantMode:  config.UIModePlain,
			wantLevel: "debug",
		},
		{name: "invalid file", flags: map[string]string{ConfigFlag: "bad.yaml"}, wantErr: true},
		{name: "invalid flag", flags: map[string]string{UIFlag: "fancy"}, wantErr: true},
		{name: "missing file", flags: map[string]string{ConfigFlag: "nope.yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(context.Background(), newCmd(t, tt.flags))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrLoadConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, cfg.UI.Mode)
			assert.Equal(t, tt.wantLevel, cfg.Log.Level)
		})
	}
}

func TestUseTUI(t *testing.T) {
	for _, terminal := range []bool{true, false} {
		stubs := gostub.Stub(&IsTerminal, func() bool { return terminal })

		assert.True(t, UseTUI(config.UIModeTUI))
		assert.False(t, UseTUI(config.UIModePlain))
		assert.Equal(t, terminal, UseTUI(config.UIModeAuto))

		stubs.Reset()
	}
}

func TestNewUI(t *testing.T) {
	defer goleak.VerifyNone(t)

	stubs := gostub.Stub(&IsTerminal, func() bool { return false })
	defer stubs.Reset()

	cfg := config.Default()

	ui := NewUI(cfg, &bytes.Buffer{})
	assert.IsType(t, &tui.Plain{}, ui)
	ui.Close()

	cfg.UI.Mode = config.UIModeTUI
	ui = NewUI(cfg, &bytes.Buffer{})
	assert.IsType(t, &tui.Runner{}, ui)
	ui.Close()
}

func TestSetupLogging(t *testing.T) {
	keepLevel(t)

	t.Run("file", func(t *testing.T) {
		cfg := config.Default()
		cfg.Log.Level = "debug"
		cfg.Log.Path = filepath.Join(t.TempDir(), "logs", "lspbridge.log")

		ctx, flush, err := SetupLogging(context.Background(), cfg, true)
		require.NoError(t, err)

		ctxlog.Debug(ctx, "hello")
		flush()

		assert.Equal(t, slog.LevelDebug, ctxlog.LevelVar.Level())
		assert.FileExists(t, cfg.Log.Path)
	})

	t.Run("buffered while the tui is active", func(t *testing.T) {
		cfg := config.Default()

		ctx, flush, err := SetupLogging(context.Background(), cfg, true)
		require.NoError(t, err)
		assert.NotSame(t, ctxlog.DefaultLogger, ctxlog.Logger(ctx))
		flush()
	})

	t.Run("invalid level", func(t *testing.T) {
		cfg := config.Default()
		cfg.Log.Level = "loud"

		_, flush, err := SetupLogging(context.Background(), cfg, false)
		require.ErrorIs(t, err, ctxlog.ErrInvalidLevel)
		flush()
	})
}

func TestLocal(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.Default()

	var out bytes.Buffer

	ui := tui.NewPlain(&out, 16)
	local := NewLocal(context.Background(), cfg, ui)

	local.Dispatcher.Route(context.Background(), "custom/rgo/progress",
		[]byte(`{"type":"start","id":"a","message":"Working"}`))
	assert.True(t, local.Registry.IsActive("a"))

	// The dismiss key of the UI reaches the registry.
	assert.True(t, local.Registry.Cancel("a"))

	local.Close()
	ui.Close()
	<-ui.Done()

	assert.Contains(t, out.String(), "… Working")
	assert.Equal(t, 0, local.Registry.Len())
}

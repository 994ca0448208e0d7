package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/0xReLogic/tilepack/internal/container"
	"github.com/0xReLogic/tilepack/internal/data/bitmap"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"tilepack", "--log-level", "warn"}, args...))
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	packed := filepath.Join(dir, "input.tp")
	restored := filepath.Join(dir, "restored")

	data := bytes.Repeat([]byte("0123456789abcdef"), 5000)
	require.NoError(t, os.WriteFile(in, data, 0o644))

	flags := []string{"--engine", "zstd", "--tile-size", "8192"}
	run := func(args ...string) (string, error) {
		return runApp(t, append(append([]string(nil), flags...), args...)...)
	}

	_, err := run("compress", in, packed)
	require.NoError(t, err)

	_, err = run("decompress", packed, restored)
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	out, err := run("inspect", "--tiles", packed)
	require.NoError(t, err)
	assert.Contains(t, out, "uncompressed:  80000")

	out, err = run("inspect", "--json", packed)
	require.NoError(t, err)
	var summary container.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 10, summary.TileCount)
	assert.Equal(t, 80000-9*8192, summary.LastTileSize)

	out, err = run("verify", packed)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: 10 tiles, 80000 bytes")

	out, err = run("cat", "--offset", "8190", "--length", "20", packed)
	require.NoError(t, err)
	assert.Equal(t, string(data[8190:8210]), out)

	out, err = run("cat", "--offset", "79990", packed)
	require.NoError(t, err)
	assert.Equal(t, string(data[79990:]), out)
}

func TestVerifyDamaged(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input")
	packed := filepath.Join(dir, "input.tp")
	set := filepath.Join(dir, "damaged.roaring")

	require.NoError(t, os.WriteFile(in, bytes.Repeat([]byte("tile "), 10000), 0o644))
	_, err := runApp(t, "--engine", "zstd", "--tile-size", "8192", "compress", in, packed)
	require.NoError(t, err)

	stream, err := os.ReadFile(packed)
	require.NoError(t, err)
	idx, err := container.ParseIndex(stream, 8192)
	require.NoError(t, err)
	stream[idx.Tiles[2].Offset] ^= 0xff
	require.NoError(t, os.WriteFile(packed, stream, 0o644))

	_, err = runApp(t, "--engine", "zstd", "--tile-size", "8192", "verify", "--damaged-out", set, packed)
	require.Error(t, err)

	b, err := os.ReadFile(set)
	require.NoError(t, err)
	damaged, err := bitmap.FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, bitmap.Indices(damaged))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := runApp(t, "compress", "only-one")
	assert.Error(t, err)

	_, err = runApp(t, "--engine", "brotli", "compress", "a", "b")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.tp")
	require.NoError(t, os.WriteFile(bad, []byte("not a container"), 0o644))
	_, err = runApp(t, "verify", bad)
	assert.Error(t, err)
}

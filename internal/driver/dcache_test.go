package driver_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"idlc/internal/codegen"
	"idlc/internal/driver"
	"idlc/internal/project"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "cache", "units.db")
	c, err := driver.OpenDiskCache(p)
	require.NoError(t, err)
	key := project.Sum([]byte("k"))

	var out driver.DiskPayload
	hit, err := c.Get(key, &out)
	require.NoError(t, err)
	require.False(t, hit)

	in := &driver.DiskPayload{Module: "a.thrift", Target: "go", Units: []codegen.OutputUnit{
		{Path: "gen/a/a.go", Module: "a.thrift", Content: []byte("package a\n")},
	}}
	require.NoError(t, c.Put(key, in))
	require.NoError(t, c.Close())

	c, err = driver.OpenDiskCache(p)
	require.NoError(t, err)
	defer c.Close()
	hit, err = c.Get(key, &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, in.Units, out.Units)
	require.Equal(t, 1, c.Len())

	require.NoError(t, c.DropAll())
	hit, err = c.Get(key, &out)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestSessionsShareDiskCache(t *testing.T) {
	c, err := driver.OpenDiskCache(filepath.Join(t.TempDir(), "units.db"))
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	compile := func() *driver.Result {
		s := driver.New(driver.Options{Loader: shop, Cache: c})
		require.NoError(t, s.SetEntries([]string{"idl/api.thrift"}))
		require.NoError(t, s.SetGenConfig(yamlConfig()))
		res, err := s.Compile(ctx)
		require.NoError(t, err)
		require.False(t, res.Failed)
		return res
	}
	first := compile()
	require.Equal(t, 2, c.Len())
	for _, m := range first.Modules {
		require.False(t, m.Cached, m.Path)
	}

	second := compile()
	require.Equal(t, first.Units, second.Units)
	for _, m := range second.Modules {
		require.True(t, m.Cached, m.Path)
	}
}

package watcher_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kodflow/daemon/internal/control"
	"github.com/kodflow/daemon/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceFileTriggersReload(t *testing.T) {
	dir := t.TempDir()
	ch := control.NewChannel(4)
	w := watcher.New(dir, ch)

	stop := make(chan struct{})
	go w.Run(stop)
	defer close(stop)

	time.Sleep(50 * time.Millisecond) // let fsnotify.Add land before writing

	path := filepath.Join(dir, "new.service")
	require.NoError(t, os.WriteFile(path, []byte("[Unit]\nDescription=x\n"), 0o644))

	select {
	case m := <-ch.Messages():
		assert.Equal(t, control.Reload, m.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a Reload message after creating a .service file")
	}
}

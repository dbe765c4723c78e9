package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	home := "/tmp/mc"
	assert.Equal(t, filepath.Join(home, "protected"), protectedDir(home))
	assert.Equal(t, filepath.Join(home, "protected", "daemon.pid"), pidPath(home))
	assert.Equal(t, filepath.Join(home, "protected", "daemon.lock"), lockPath(home))
	assert.Equal(t, filepath.Join(home, "protected", "daemon.addr"), addrPath(home))
}

func TestAcquireLock_exclusive(t *testing.T) {
	home := t.TempDir()
	lock, err := acquireLock(lockPath(home))
	require.NoError(t, err)

	_, err = acquireLock(lockPath(home))
	require.Error(t, err, "the second acquire must fail while the first holds the lock")

	lock.release()
	lock, err = acquireLock(lockPath(home))
	require.NoError(t, err, "the lock is reacquirable after release")
	lock.release()
}

func TestStatus_notRunning(t *testing.T) {
	info, err := Status(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, info.Running)
	assert.Zero(t, info.PID)
}

func TestStatus_stalePIDFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(protectedDir(home), 0o755))
	// A pid that cannot belong to a live missionctl process.
	require.NoError(t, os.WriteFile(pidPath(home), []byte("999999"), 0o644))

	info, err := Status(context.Background(), home)
	require.NoError(t, err)
	assert.False(t, info.Running, "a dead pid reads as not running")
}

func TestCheckPortAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	err = checkPortAvailable(port)
	require.Error(t, err, "the port is already bound")

	_ = ln.Close()
	require.NoError(t, checkPortAvailable(port))
}

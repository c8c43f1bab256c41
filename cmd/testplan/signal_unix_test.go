//go:build unix

package main

import (
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SIGTERMStopsWatch(t *testing.T) {
	cfg := workspace(t, map[string]string{"cli.yaml": suite})

	_, stderr, code := watching(context.Background(), append([]string{"run", "--format", "llm", "--watch"}, cfg...)...)
	// the handler is installed before the first run starts
	require.Eventually(t, func() bool { return strings.Contains(stderr.String(), idle) },
		5*time.Second, 20*time.Millisecond, "first run never finished")

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	select {
	case c := <-code:
		assert.Equal(t, exitOK, c, stderr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("SIGTERM did not stop the watch")
	}
}

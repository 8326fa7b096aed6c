package app

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateContextWithShutdown(t *testing.T) {
	ctx := createContextWithShutdown(syscall.SIGUSR1)
	require.NoError(t, ctx.Err())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}
	require.NotNil(t, ctx.Log)
}

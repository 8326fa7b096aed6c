package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/armadaproject/queuecapacity/internal/common/calccontext"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received
func CreateContextWithShutdown() *calccontext.Context {
	return createContextWithShutdown(syscall.SIGINT, syscall.SIGTERM)
}

func createContextWithShutdown(signals ...os.Signal) *calccontext.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	log := logrus.NewEntry(logrus.StandardLogger())
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Infof("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return calccontext.New(ctx, log)
}

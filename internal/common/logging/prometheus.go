package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

// AddPrometheusHook registers a hook counting log lines by level in the default prometheus registry.
// It must be called at most once per process, as the underlying counter can only be registered once.
func AddPrometheusHook(logger *logrus.Logger) error {
	hook, err := promrus.NewPrometheusHook()
	if err != nil {
		return errors.WithStack(err)
	}
	logger.AddHook(hook)
	return nil
}

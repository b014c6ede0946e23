package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadExpression(t *testing.T) {
	t.Parallel()

	s := New(nil)
	err := s.Add("not a cron spec", "crawl", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestAddAcceptsStandardExpression(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.NoError(t, s.Add("0 2 * * *", "crawl", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("30 */6 * * *", "detect", func(context.Context) error { return nil }))

	s.Start()
	<-s.Stop().Done()
}

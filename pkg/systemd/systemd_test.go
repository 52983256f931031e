package systemd

import (
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/stretchr/testify/assert"

	logx "httpcron/pkg/logx"
	"httpcron/pkg/logx/logxtest"
)

func TestNotifierSendsStates(t *testing.T) {
	t.Parallel()

	var sent []string
	n := New(logx.Nop())
	n.notify = func(_ bool, state string) (bool, error) {
		sent = append(sent, state)
		return true, nil
	}

	assert.True(t, n.Ready())
	assert.True(t, n.Reloading())
	assert.True(t, n.Status("3 jobs"))
	assert.True(t, n.Stopping())
	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyReloading, "STATUS=3 jobs", daemon.SdNotifyStopping}, sent)
}

func TestNotifierLogsFailure(t *testing.T) {
	t.Parallel()

	rec := logxtest.New()
	n := New(rec.Logger())
	n.notify = func(bool, string) (bool, error) { return false, errors.New("socket gone") }

	assert.False(t, n.Ready())
	warns := rec.ByLevel("warn")
	if assert.Len(t, warns, 1) {
		assert.Equal(t, "sd_notify failed", warns[0].Message())
	}
}

func TestNotifierWithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	assert.False(t, New(logx.Nop()).Ready())
}

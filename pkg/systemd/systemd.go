// Package systemd reports service state to systemd over the notify socket.
// Every call is a no-op when the process is not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "httpcron/pkg/logx"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	log    logx.Logger
	notify func(unsetEnv bool, state string) (bool, error)
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log, notify: daemon.SdNotify}
}

func (n *Notifier) Ready() bool     { return n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() bool  { return n.send(daemon.SdNotifyStopping) }
func (n *Notifier) Reloading() bool { return n.send(daemon.SdNotifyReloading) }

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) bool { return n.send("STATUS=" + msg) }

func (n *Notifier) send(state string) bool {
	ok, err := n.notify(false, state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// Watchdog pings the systemd watchdog at half its interval until ctx is
// done. It returns immediately when no watchdog is configured.
func (n *Notifier) Watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("watchdog config invalid", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	n.log.Debug("watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

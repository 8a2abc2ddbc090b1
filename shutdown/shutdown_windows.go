//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}

func NotifyReload(chan os.Signal) {}

func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}

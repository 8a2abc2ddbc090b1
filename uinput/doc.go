// Package uinput creates virtual keyboards through /dev/uinput and finds
// evdev nodes by device name. It is only implemented on Linux.
package uinput

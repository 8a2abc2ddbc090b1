package doctor

import (
	"io"
	"os"

	"golang.org/x/term"
)

// saveTerminal records the state of in when it is a terminal and returns
// a function that puts it back. Hotkey backends can leave the terminal in
// raw mode.
func saveTerminal(in io.Reader) func() {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	fd := int(f.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { term.Restore(fd, state) }
}

//go:build !linux && !darwin && !windows

package inject

type stubKeyboard struct{}

func NewKeyboard() stubKeyboard { return stubKeyboard{} }

func (stubKeyboard) TypeText(string) error  { return ErrUnsupported }
func (stubKeyboard) Paste() error           { return ErrUnsupported }
func (stubKeyboard) Copy() error            { return ErrUnsupported }
func (stubKeyboard) SelectLeft(int) error   { return ErrUnsupported }
func (stubKeyboard) Delete() error          { return ErrUnsupported }
func (stubKeyboard) Backspace(int) error    { return ErrUnsupported }
func (stubKeyboard) CollapseRight() error   { return ErrUnsupported }
func (stubKeyboard) Close() error           { return nil }
func (stubKeyboard) Probe() (string, error) { return "", ErrUnsupported }

package utils

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	warnStyle   = color.New(color.FgYellow, color.Bold)
	dangerStyle = color.New(color.FgRed, color.Bold)
	okStyle     = color.New(color.FgGreen)
)

// Warn, Danger and OK colour s when stdout is a terminal.
func Warn(s string) string   { return warnStyle.Sprint(s) }
func Danger(s string) string { return dangerStyle.Sprint(s) }
func OK(s string) string     { return okStyle.Sprint(s) }

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Progress shows activity while a storage call is in flight.
type Progress interface {
	// Start shows msg and returns a function that clears it.
	Start(msg string) (stop func())
}

// NewProgress returns a spinner on w when w is a terminal, otherwise a
// progress that prints nothing.
func NewProgress(w io.Writer) Progress {
	f, ok := w.(*os.File)
	if !ok || !IsTerminal(f) {
		return NopProgress{}
	}
	return &spinnerProgress{w: w}
}

type spinnerProgress struct {
	w io.Writer
}

func (p *spinnerProgress) Start(msg string) func() {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(p.w))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

// NopProgress discards progress updates.
type NopProgress struct{}

func (NopProgress) Start(string) func() { return func() {} }

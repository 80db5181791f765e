package host

import (
	"io"
	"os"

	"golang.org/x/term"
)

// stdio carries the host's standard streams. Tests swap these for
// buffers; production wiring uses the real process files.
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func defaultStdio() stdio {
	return stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// Stdin returns the input stream.
func (p *Proc) Stdin() io.Reader { return p.stdio.in }

// Stdout returns the output stream.
func (p *Proc) Stdout() io.Writer { return p.stdio.out }

// Stderr returns the diagnostic stream. Warnings and failure reports
// render here.
func (p *Proc) Stderr() io.Writer { return p.stdio.err }

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func (p *Proc) StdoutIsTerminal() bool { return streamIsTerminal(p.stdio.out) }

// StderrIsTerminal reports whether stderr is attached to a terminal.
func (p *Proc) StderrIsTerminal() bool { return streamIsTerminal(p.stdio.err) }

// StdinIsTerminal reports whether stdin is attached to a terminal.
func (p *Proc) StdinIsTerminal() bool { return streamIsTerminal(p.stdio.in) }

func streamIsTerminal(stream any) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

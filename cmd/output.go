package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorGreen  = "\033[0;32m"
	colorBlue   = "\033[0;34m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[0;36m"
	colorRed    = "\033[0;31m"
	colorBold   = "\033[1m"
	colorReset  = "\033[0m"
)

// printer writes operator-facing status lines. Colors are only emitted
// when w is a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok {
		p.color = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *printer) paint(color, s string) string {
	if !p.color {
		return s
	}
	return color + s + colorReset
}

func (p *printer) header(title string) {
	rule := strings.Repeat("=", 40)
	fmt.Fprintln(p.w, p.paint(colorBold+colorCyan, rule))
	fmt.Fprintln(p.w, p.paint(colorBold+colorCyan, "       "+title))
	fmt.Fprintln(p.w, p.paint(colorBold+colorCyan, rule))
	fmt.Fprintln(p.w)
}

func (p *printer) success(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(colorGreen, "[OK]"), msg)
}

func (p *printer) info(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(colorBlue, "[INFO]"), msg)
}

func (p *printer) warn(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(colorYellow, "[WARN]"), msg)
}

func (p *printer) error(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(colorRed, "[ERROR]"), msg)
}

func (p *printer) step(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.paint(colorCyan, ">>>"), msg)
}

package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"  ___                  _         _   ", "#818cf8"},
	{" | __|__ _ _ _ __  ___| |__  ___| |_ ", "#a78bfa"},
	{" | _/ _ \\ '_| '  \\|___| '_ \\/ _ \\  _|", "#e879f9"},
	{" |_|\\___/_| |_|_|_|   |_.__/\\___/\\__|", "#fb7185"},
}

// PrintBanner writes the formbot banner to w, colored when the terminal supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

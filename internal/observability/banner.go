package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const banner = `
   _____            __  _            __
  / ___/___  ____  / /_(_)___  ___  / /
  \__ \/ _ \/ __ \/ __/ / __ \/ _ \/ /
 ___/ /  __/ / / / /_/ / / / /  __/ /
/____/\___/_/ /_/\__/_/_/ /_/\___/_/

   >> TERRAFORM SECURITY REVIEW AGENT <<
`

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// PrintBanner writes the centered logo followed by key/value lines such as
// the listen address and model.
func PrintBanner(w io.Writer, details [][2]string) {
	width := termWidth()
	logo := color.New(color.FgHiCyan, color.Bold)
	key := color.New(color.FgHiMagenta)

	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", padding), logo.Sprint(l))
	}

	for _, kv := range details {
		fmt.Fprintf(w, "  %s %s\n", key.Sprintf("%-10s", kv[0]), kv[1])
	}
	fmt.Fprintln(w)
}

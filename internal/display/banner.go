package display

import (
	"fmt"
	"io"

	"github.com/backmassage/layerlapse/internal/term"
)

// PrintBanner prints the ASCII art banner to w; magenta if colors are enabled.
func PrintBanner(w io.Writer) {
	if term.Enabled() {
		fmt.Fprint(w, "\033[1;95m")
	}
	fmt.Fprint(w, ` _                       _
| | __ _ _   _  ___ _ __| | __ _ _ __  ___  ___
| |/ _`+"`"+` | | | |/ _ \ '__| |/ _`+"`"+` | '_ \/ __|/ _ \
| | (_| | |_| |  __/ |  | | (_| | |_) \__ \  __/
|_|\__,_|\__, |\___|_|  |_|\__,_| .__/|___/\___|
         |___/                  |_|
`)
	if term.Enabled() {
		fmt.Fprint(w, term.NC+"\n")
	}
}

// Package theme renders the CLI banner.
package theme

import (
	"fmt"
	"io"
)

// Banner returns the feedcore banner with ANSI colors.
func Banner(version string) string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const reset = "\033[0m"

	return "" +
		cyan + "  ┌─┐┌─┐┌─┐┌┬┐┌─┐┌─┐┬─┐┌─┐\n" + reset +
		cyan + "  ├┤ ├┤ ├┤  │││  │ │├┬┘├┤ \n" + reset +
		cyan + "  └  └─┘└─┘─┴┘└─┘└─┘┴└─└─┘\n" + reset +
		magenta + "  feed ranking core " + version + reset + "\n"
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, Banner(version))
}

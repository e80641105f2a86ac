// Command listings reads, writes and watches the documents of the listing
// platform and manages local demo sessions.
package main

import (
	"os"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

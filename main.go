// The main package for the image-scraper executable.
package main

import (
	"github.com/openimg/image-scraper/cmd"
)

func main() {
	cmd.Execute()
}

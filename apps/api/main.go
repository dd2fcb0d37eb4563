package main

import "os"

// startManual and startWithDig wire the same dependency graph; the manual
// path is kept around for debugging the container.
func main() {
	if os.Getenv("DI") == "manual" {
		startManual()
		return
	}
	startWithDig()
}

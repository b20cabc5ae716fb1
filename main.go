package main

import "gpgforge/internal/gpgforge"

func main() {
	gpgforge.Main()
}

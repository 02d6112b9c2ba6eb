// Command passlocal manages a local, password-encrypted secret vault.
package main

import "os"

func main() {
	registerCompletionFunctions()
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

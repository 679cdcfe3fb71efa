// Command docxcompose builds .docx documents from a style template and a
// YAML or JSON content stream.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

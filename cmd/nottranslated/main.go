// Command nottranslated runs the translation-quality gateway, the terminal
// review client and the batch tools that maintain the suspect store.
package main

import (
	"os"

	"github.com/japaniel/nottranslated/pkg/logger"
)

func main() {
	err := newRootCmd().Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

package gpgforge

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// interactiveMu serializes prompts so concurrent output never interleaves
// with a pending question.
var interactiveMu sync.Mutex

// askForConfirmation prompts the user with a [Y/n] question. Empty input
// counts as yes; EOF counts as no.
func askForConfirmation(p colorPrinter, format string, a ...any) bool {
	interactiveMu.Lock()
	defer interactiveMu.Unlock()

	reader := bufio.NewReader(os.Stdin)
	mainPrompt := fmt.Sprintf(format, a...)
	fullPrompt := fmt.Sprintf("%s [Y/n]: ", mainPrompt)

	for {
		cPrintf(p, "%s", fullPrompt)
		response, err := reader.ReadString('\n')
		if err != nil {
			return false // On error (like Ctrl+D), default to "no"
		}
		response = strings.ToLower(strings.TrimSpace(response))

		if response == "y" || response == "yes" || response == "" {
			return true
		}
		if response == "n" || response == "no" {
			return false
		}
	}
}

package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Confirm asks a yes/no question on the terminal and returns the answer.
// Off a terminal (scripts, CI, piped output) it returns defaultYes so
// automated callers never hang; destructive commands pair this with a
// --yes flag and a false default.
func Confirm(question string, defaultYes bool) bool {
	prompt := fmt.Sprintf("%s [y/N] ", question)
	if defaultYes {
		prompt = fmt.Sprintf("%s [Y/n] ", question)
	}

	if !IsTerminal() {
		fmt.Printf("%s(non-interactive, assuming %s)\n", prompt, yesNo(defaultYes))
		return defaultYes
	}

	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		// EOF mid-prompt counts as "take the default".
		fmt.Println()
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}
	return defaultYes
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

package utils

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptSecret demande une valeur sans écho quand stdin est un terminal.
func PromptSecret(label string) (string, error) {
	fmt.Print(label + ": ")
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("%s must not be empty", strings.ToLower(label))
	}
	return strings.TrimSpace(string(secret)), nil
}

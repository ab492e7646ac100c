package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// Test seams for terminal access.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// GetSimpleText prints a prompt to w and reads a single line of input from
// reader. If EOF occurs after some input was read, the partial line is
// returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassphrase prompts for a passphrase. On a terminal it is read without
// echo; otherwise one line is read from reader, which lets scripts pipe it.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetPassphrase(reader *bufio.Reader, prompt string, w io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		line, err := GetSimpleText(reader, prompt, w)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetNewPassphrase prompts twice and requires both entries to match.
func GetNewPassphrase(reader *bufio.Reader, w io.Writer) ([]byte, error) {
	first, err := GetPassphrase(reader, "Backup passphrase", w)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	second, err := GetPassphrase(reader, "Repeat passphrase", w)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(second)
	if !bytes.Equal(first, second) {
		common.WipeByteArray(first)
		return nil, errors.New("passphrases do not match")
	}
	return first, nil
}

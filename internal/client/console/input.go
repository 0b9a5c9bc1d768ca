package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// stdinIsTerminal is a test seam for term.IsTerminal on stdin.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// GetToken prints a prompt to w and reads the master token without echo.
// When stdin is not a terminal the token is read as a plain line from
// reader instead. The caller should wipe the returned slice.
func GetToken(reader *bufio.Reader, w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Master token: "); err != nil {
		return nil, err
	}

	if !stdinIsTerminal() {
		line, err := GetLine(reader)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	tok, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// GetLine reads one line with the trailing newline trimmed. A final line
// without a newline is returned as-is.
func GetLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

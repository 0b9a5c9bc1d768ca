package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// commander is the command surface the REPL drives. *Session satisfies it.
type commander interface {
	List() error
	CreateOffice(office string) error
	RenamePc(office, pcID, name string) error
}

// runREPL reads commands until EOF or "exit". Input splits on whitespace;
// "create" takes the rest of the line as the office name.
//
//	help                      show available commands
//	list                      request a fresh snapshot
//	create <office>           ensure an office exists
//	rename <office> <pc> <n>  set a PC display name (office must be one word)
//	exit | quit               leave
func runREPL(c commander, scanner *bufio.Scanner, w io.Writer) {
	for {
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch cmd := parts[0]; cmd {
		case "help":
			fmt.Fprintln(w, "Available commands: list, create <office>, rename <office> <pcId> <name>, exit")
		case "l", "list":
			err = c.List()
		case "create":
			if len(parts) < 2 {
				fmt.Fprintln(w, "Usage: create <office>")
				continue
			}
			err = c.CreateOffice(strings.Join(parts[1:], " "))
		case "rename":
			if len(parts) < 4 {
				fmt.Fprintln(w, "Usage: rename <office> <pcId> <name>")
				continue
			}
			err = c.RenamePc(parts[1], parts[2], strings.Join(parts[3:], " "))
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
}

package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ssh-session-launcher/pkg/manager"
)

// SimpleMenu is the numbered, line-oriented picker for terminals where the
// TUI is unwanted.
type SimpleMenu struct {
	in  *bufio.Reader
	out io.Writer
}

// NewSimpleMenu reads answers from in and writes the menu to out.
func NewSimpleMenu(in io.Reader, out io.Writer) *SimpleMenu {
	return &SimpleMenu{in: bufio.NewReader(in), out: out}
}

// Pick shows hosts grouped by first tag and returns the chosen one.
// ok is false on "0", "q", "exit" or end of input.
func (s *SimpleMenu) Pick(hosts []manager.HostProfile) (h manager.HostProfile, ok bool, err error) {
	current := hosts
	for {
		if len(current) == 0 {
			fmt.Fprintln(s.out, "No hosts found matching your criteria.")
			return h, false, nil
		}
		list := s.render(current)

		for {
			fmt.Fprintf(s.out, "\nSelect host (1-%d, 0=exit, s=search): ", len(list))
			line, rerr := s.readLine()
			if rerr != nil {
				return h, false, nil
			}
			choice := strings.ToLower(line)

			switch choice {
			case "0", "q", "exit":
				return h, false, nil
			case "s", "search":
				fmt.Fprint(s.out, "Enter search term (name or tags): ")
				term, rerr := s.readLine()
				if rerr != nil {
					return h, false, nil
				}
				if term == "" {
					continue
				}
				filtered := manager.FilterHosts(current, term)
				if len(filtered) == 0 {
					fmt.Fprintf(s.out, "No hosts found matching '%s'\n", term)
					continue
				}
				current = filtered
			default:
				n, cerr := strconv.Atoi(choice)
				switch {
				case cerr != nil:
					fmt.Fprintln(s.out, "Invalid choice. Please enter a number, 's' for search, or '0' to exit.")
				case n < 1 || n > len(list):
					fmt.Fprintf(s.out, "Please enter a number between 1 and %d\n", len(list))
				default:
					return list[n-1], true, nil
				}
				continue
			}
			break
		}
	}
}

// render prints the grouped listing and returns hosts in numbering order.
func (s *SimpleMenu) render(hosts []manager.HostProfile) []manager.HostProfile {
	fmt.Fprintf(s.out, "\nAvailable SSH Hosts (%d total):\n", len(hosts))
	fmt.Fprintln(s.out, strings.Repeat("=", 60))

	groups := manager.GroupByPrimaryTag(hosts)
	list := make([]manager.HostProfile, 0, len(hosts))
	for _, g := range groups {
		if g.Tag != "" || len(groups) > 1 {
			fmt.Fprintf(s.out, "\n%s\n", groupTitle(g.Tag))
		}
		for _, h := range g.Hosts {
			list = append(list, h)
			fmt.Fprintf(s.out, "%2d. %s\n", len(list), manager.HostLine(h))
		}
	}

	fmt.Fprintln(s.out, "\nOptions:")
	fmt.Fprintln(s.out, "  0. Exit")
	fmt.Fprintln(s.out, "  s. Search/filter hosts")
	return list
}

func (s *SimpleMenu) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

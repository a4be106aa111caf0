package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// skippedError reports a command that found nothing to act on.
type skippedError struct {
	command string
	reason  string
}

func (e skippedError) Error() string {
	return fmt.Sprintf("%s: %s", e.command, e.reason)
}

type invalidArgError struct {
	name  string
	value string
}

func (e invalidArgError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.name, e.value)
}

func parseID(name, s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, invalidArgError{name: name, value: s}
	}
	return id, nil
}

func parseIDs(name string, ss []string) ([]int, error) {
	out := make([]int, 0, len(ss))
	for _, s := range ss {
		for _, part := range strings.Split(s, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(name, part)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}

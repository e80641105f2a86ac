package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// indent reports whether JSON output is indented. Terminals get indented
// output unless --compact is set; pipes get one document per line.
func (a *app) indent() bool {
	if a.flags.compact {
		return false
	}
	if a.flags.pretty {
		return true
	}
	f, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) printJSON(v any) error {
	var (
		out []byte
		err error
	)
	if a.indent() {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return sysError(fmt.Errorf("marshal output: %w", err))
	}
	fmt.Fprintln(a.out, string(out))
	return nil
}

// accessFailure maps a normalized access error to an exit code. Backend
// outages are system errors; everything else is the caller's to fix.
func accessFailure(err error) error {
	var ae *types.AccessError
	if !errors.As(err, &ae) {
		return sysError(err)
	}
	switch ae.Code {
	case types.CodeUnavailable, types.CodeUnknown:
		return sysError(err)
	default:
		return userError(err)
	}
}

// readPayload returns arg, or standard input when arg is "-".
func readPayload(arg string, stdin io.Reader) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, sysError(fmt.Errorf("read stdin: %w", err))
	}
	return data, nil
}

// parseValue decodes s as JSON, falling back to the raw string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// isDocPath reports whether path has an even number of segments.
func isDocPath(path string) bool {
	return strings.Count(strings.Trim(path, "/"), "/")%2 == 1
}

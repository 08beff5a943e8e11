// Command depscheck fails when the camera and sync layers pick up transport
// or storage imports. Those packages are shared with the viewer client and
// must stay usable without a server.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// isolated lists the package patterns to inspect.
var isolated = []string{
	"./internal/camera/...",
	"./internal/netsync/...",
	"./internal/render/...",
}

// forbidden lists import prefixes those packages may not use.
var forbidden = []string{
	"github.com/gorilla/websocket",
	"modernc.org/sqlite",
	"github.com/golang-migrate/migrate",
	"net/http",
	"spectate/server/internal/net",
	"spectate/server/internal/store",
	"spectate/server/internal/sim",
	"spectate/server/internal/session",
}

func main() {
	args := append([]string{"list", "-json"}, isolated...)
	cmd := exec.Command("go", args...)
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	violations, err := check(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

// check decodes a go list -json stream and returns sorted violations.
func check(r io.Reader) ([]string, error) {
	decoder := json.NewDecoder(r)

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}

		for _, imp := range pkg.Imports {
			for _, prefix := range forbidden {
				if imp == prefix || strings.HasPrefix(imp, prefix+"/") {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					break
				}
			}
		}
	}
	sort.Strings(violations)
	return violations, nil
}

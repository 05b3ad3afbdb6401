package core

import (
	"fmt"
	"strings"
)

// provisionCommands expands a setup step into the ordered shell commands
// that prepare the sandbox: interpreter check, package installs, then
// browser engines through the automation library's own installer. Each
// command runs separately so the first non-zero exit fails the run with
// a usable log.
func provisionCommands(w With) []string {
	cmds := []string{fmt.Sprintf("python%s --version", pythonSuffix(w.Python))}
	if len(w.Packages) > 0 {
		cmds = append(cmds, fmt.Sprintf(
			"python%s -m pip install --quiet %s",
			pythonSuffix(w.Python), strings.Join(w.Packages, " ")))
	}
	for _, b := range w.Browsers {
		cmds = append(cmds, fmt.Sprintf("python%s -m playwright install %s", pythonSuffix(w.Python), b))
	}
	return cmds
}

// pythonSuffix maps a version tag to the interpreter binary suffix:
// "3.12" -> "3.12", "3" or "" -> "3". Full version tags are kept so the
// requested minor version is what actually runs.
func pythonSuffix(version string) string {
	if version == "" {
		return "3"
	}
	return version
}

// Package varpath resolves the directory where persistent cache
// segment files live, following the fallback chain described in the
// cache's external interfaces: a client-home override, then an
// instance-home "var" subdirectory, then the process working directory.
package varpath

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// Resolve returns the var directory to use for persistent segment
// files. clientHome, if non-empty, is used directly (matching the
// original's CLIENT_HOME override). Otherwise instanceHome, if
// non-empty, is joined with "var". Otherwise the process working
// directory is used. Both inputs pass through go-homedir's Expand, so
// a leading "~" in either expands the same way a shell would.
func Resolve(clientHome, instanceHome string) (string, error) {
	if clientHome != "" {
		return homedir.Expand(clientHome)
	}

	if instanceHome != "" {
		expanded, err := homedir.Expand(instanceHome)
		if err != nil {
			return "", err
		}
		return filepath.Join(expanded, "var"), nil
	}

	return os.Getwd()
}

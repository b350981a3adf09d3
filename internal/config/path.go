package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/ovsenv/ovsenv"
)

// Path returns an appropriate path to a config file, depending on whether the
// process is running as root or non-root. If the computed path does not
// exist, an empty string is returned.
func Path() (string, error) {
	var prefix string
	if os.Getuid() == 0 {
		prefix = ovsenv.SysconfDir
	} else {
		prefix = xdg.ConfigHome
	}

	filePath := filepath.Join(prefix, ovsenv.LongName, "config.toml")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil
	}

	return filePath, nil
}

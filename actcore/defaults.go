// Package actcore holds application-wide defaults shared by the executor,
// the reference agent loop and the command-line front end.
package actcore

import (
	"os"
	"path/filepath"
)

const (
	DefaultAppName      = "actcore"
	DefaultDatabaseType = "libsql"
	DefaultFinalTool    = "final_answer"
)

var (
	DefaultConfigPath  = filepath.Join(userConfigDir(), DefaultAppName)
	DefaultCacheDir    = filepath.Join(userCacheDir(), DefaultAppName)
	DefaultDatabaseDir = filepath.Join(DefaultCacheDir, "db")
	DefaultDatabaseDSN = filepath.Join(DefaultDatabaseDir, "transcripts.db")
)

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func userCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return os.TempDir()
}

package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
)

const envFileFlag = "--env-file"

// EnvFilePath finds the --env-file value in raw arguments. The file must be
// loaded before flag parsing so that its variables feed flag sources.
func EnvFilePath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if arg == envFileFlag && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, envFileFlag+"="); ok {
			return v
		}
	}
	return ""
}

// LoadEnvFile loads variables from path without overriding the ones already set
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return goerr.Wrap(err, "failed to load env file", goerr.V(ConfigPathKey, path))
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// Name is the base name of configuration files and directories.
const Name = "usbfsd"

// EnvConfig names the environment variable holding a configuration file.
const EnvConfig = "USBFSD_CONFIG"

// FindUserConfig returns the file named by --config in args, falling back
// to $USBFSD_CONFIG.
func FindUserConfig(args []string) string {
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv(EnvConfig)
}

// CandidatePaths returns the configuration files to try, split by format.
// An explicit user file is the only candidate of its format. Otherwise
// the working directory is searched before the user configuration
// directory.
func CandidatePaths(user string) (jsonPaths, yamlPaths, tomlPaths []string) {
	if user != "" {
		switch Format(user) {
		case FormatJSON:
			return []string{user}, nil, nil
		case FormatTOML:
			return nil, nil, []string{user}
		default:
			return nil, []string{user}, nil
		}
	}

	dirs := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, Name))
	}
	for _, dir := range dirs {
		base := filepath.Join(dir, Name)
		if dir != "." {
			base = filepath.Join(dir, "config")
		}
		jsonPaths = append(jsonPaths, base+".json")
		yamlPaths = append(yamlPaths, base+".yaml", base+".yml")
		tomlPaths = append(tomlPaths, base+".toml")
	}
	return jsonPaths, yamlPaths, tomlPaths
}

// Options returns the kong options that load configuration files. Flags
// and environment variables override file values.
func Options(user string) []kong.Option {
	jsonPaths, yamlPaths, tomlPaths := CandidatePaths(user)
	return []kong.Option{
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	}
}

package helper

import (
	"os"
	"path/filepath"
)

// SystemConfigDir is the last place configuration files are looked up
const SystemConfigDir = "/etc/serverless-offline"

// GetCfgPath returns the path to a configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/serverless-offline/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if found := lookupWorkingDir(filename); found != "" {
		return found
	}

	return filepath.Join(SystemConfigDir, filename)
}

// GetProjectPath resolves a project file relative to the gateway config file
// directory when it is not found from the working directory.
func GetProjectPath(project, cfgPath string) string {
	if filepath.IsAbs(project) {
		return project
	}
	if found := lookupWorkingDir(project); found != "" {
		return found
	}
	if cfgPath != "" {
		return filepath.Join(filepath.Dir(cfgPath), project)
	}
	return project
}

func lookupWorkingDir(filename string) string {
	currentDir, err := os.Getwd()
	if err != nil || currentDir == "" {
		return ""
	}

	for _, candidate := range []string{
		filepath.Join(currentDir, filename),
		filepath.Join(currentDir, "configs", filename),
	} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if absPath, err := filepath.Abs(candidate); err == nil {
			return absPath
		}
	}
	return ""
}

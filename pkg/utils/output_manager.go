package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSpilloverDirName is the directory created under the working
// directory for spillover files.
const DefaultSpilloverDirName = ".streamsynth-spillover"

// OutputManager owns a directory of generated files. The directory is only
// created when the first file is requested.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager rooted at baseOutputDir.
// An empty value selects DefaultSpilloverDirName under the working directory.
func NewOutputManager(baseOutputDir string) *OutputManager {
	if baseOutputDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			baseOutputDir = filepath.Join(cwd, DefaultSpilloverDirName)
		} else {
			baseOutputDir = DefaultSpilloverDirName
		}
	}
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// EnsureOutputDirExists ensures the base output directory exists
func (om *OutputManager) EnsureOutputDirExists() error {
	if err := os.MkdirAll(om.BaseOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// GetOutputFilePath returns the path for fileName inside the base directory,
// creating the directory if needed.
func (om *OutputManager) GetOutputFilePath(fileName string) (string, error) {
	if err := om.EnsureOutputDirExists(); err != nil {
		return "", err
	}
	return filepath.Join(om.BaseOutputDir, filepath.Base(fileName)), nil
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}

// RemoveIfEmpty deletes the base directory when it exists and holds no
// entries. A missing directory is not an error.
func (om *OutputManager) RemoveIfEmpty() (bool, error) {
	entries, err := os.ReadDir(om.BaseOutputDir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(om.BaseOutputDir); err != nil {
		return false, err
	}
	return true, nil
}

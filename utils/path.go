package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

func GetProjectRoot() string {
	if env := os.Getenv("USAGE_REPORTS_ROOT"); env != "" {
		return env
	}
	executable, err := os.Executable()
	if err != nil {
		log.Fatalf("Failed to get executable: %v", err)
	}
	dir := filepath.Dir(executable)
	return filepath.Clean(filepath.Join(dir, ".."))
}

// ResolvePath rend un chemin relatif à la racine du projet; les chemins absolus sont inchangés.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GetProjectRoot(), p)
}

func EnsureDirExists(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// LogToFile redirige le logger standard vers log/<filename>, après archivage de l'ancien fichier.
func LogToFile(filename string) *os.File {
	logDir := filepath.Join(GetProjectRoot(), "log")
	EnsureDirExists(logDir)
	logFileName := filepath.Join(logDir, filename)
	// if log file exist, move it to archive and rename
	if _, err := os.Stat(logFileName); err == nil {
		archives := filepath.Join(logDir, "archives")
		EnsureDirExists(archives)
		os.Rename(logFileName, filepath.Join(archives, filename+"."+time.Now().Format("2006-01-02-15-04-05")))
	}

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		panic(err)
	}
	log.SetOutput(io.MultiWriter(logFile))
	return logFile
}

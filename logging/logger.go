package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Logger est un logger logrus écrivant dans un fichier dédié (access, report, summary...).
type Logger struct {
	*logrus.Logger
	file *os.File
}

// NewLogger crée (et ouvre en append) un logger fichier
func NewLogger(dir, fname string) (*Logger, error) {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, fname), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	return &Logger{Logger: l, file: f}, nil
}

// NewLoggerOrDie (pour main.go, pour moins de boilerplate)
func NewLoggerOrDie(dir, fname string) *Logger {
	l, err := NewLogger(dir, fname)
	if err != nil {
		panic(err)
	}
	return l
}

// Discard retourne un logger muet, utile dans les tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// SetFormat bascule entre "text" (défaut) et "json".
func (l *Logger) SetFormat(format string) {
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
		return
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
}

// Close ferme le fichier log proprement
func (l *Logger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"usage-reports/utils"

	"github.com/spf13/cobra"
)

var (
	pidPath = filepath.Join(utils.GetProjectRoot(), "pid")
	pidFile = filepath.Join(pidPath, "usage-reports.pid")
	binFile = filepath.Join(utils.GetProjectRoot(), "bin", "usage-reports")
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Démarre, arrête ou recharge le serveur",
	}
	cmd.AddCommand(
		&cobra.Command{Use: "start", RunE: func(*cobra.Command, []string) error { return start() }},
		&cobra.Command{Use: "stop", RunE: func(*cobra.Command, []string) error { return stop() }},
		&cobra.Command{Use: "reload", RunE: func(*cobra.Command, []string) error { return signalServer(syscall.SIGHUP, "reloaded") }},
		&cobra.Command{Use: "restart", RunE: func(*cobra.Command, []string) error {
			if err := stop(); err != nil {
				return err
			}
			time.Sleep(1 * time.Second)
			return start()
		}},
	)
	return cmd
}

func start() error {
	_ = utils.EnsureDirExists(pidPath)
	if _, err := os.Stat(pidFile); err == nil {
		fmt.Println("usage-reports already running!")
		return nil
	}
	cmd := exec.Command(binFile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644)
	fmt.Printf("usage-reports started, pid=%d\n", cmd.Process.Pid)
	return nil
}

func stop() error {
	if err := signalServer(syscall.SIGTERM, "stopped"); err != nil {
		return err
	}
	os.Remove(pidFile)
	return nil
}

func signalServer(sig syscall.Signal, done string) error {
	pid, err := readPID()
	if err != nil {
		fmt.Println("Not running")
		return nil
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	fmt.Printf("usage-reports %s.\n", done)
	return nil
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

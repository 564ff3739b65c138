package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create ~/.tcn with a default configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, "Creating ~/.tcn directory structure... ")
		tcnDir, err := config.EnsureTCNDir()
		if err != nil {
			return fmt.Errorf("create directories: %w", err)
		}
		fmt.Fprintln(out, "✓")

		configPath := filepath.Join(tcnDir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			fmt.Fprint(out, "Creating default configuration... ")
			if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintln(out, "✓")
		} else {
			fmt.Fprintln(out, "Configuration already exists ✓")
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, "Connection strings and keys belong in ~/.tcn/secrets.yaml:")
		fmt.Fprintln(out, "  database_url, portal_api_key, amqp_url")
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tcnd daemon in the background",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isRunning() {
			fmt.Println("✓ Daemon is already running")
			return nil
		}

		tcnDir, err := config.EnsureTCNDir()
		if err != nil {
			return fmt.Errorf("setup tcn directory: %w", err)
		}

		tcndPath, err := findDaemonBinary()
		if err != nil {
			return fmt.Errorf("find daemon binary: %w", err)
		}

		proc := exec.Command(tcndPath)
		proc.Dir = tcnDir
		configureDaemonProcess(proc)

		if err := proc.Start(); err != nil {
			return fmt.Errorf("start daemon: %w", err)
		}

		fmt.Print("Starting daemon...")
		for i := 0; i < 30; i++ {
			time.Sleep(100 * time.Millisecond)
			if isRunning() {
				fmt.Println(" ✓")
				fmt.Printf("Daemon running at %s\n", daemonAddr)
				return nil
			}
			fmt.Print(".")
		}

		fmt.Println(" ✗")
		return fmt.Errorf("daemon failed to start (check logs with 'tcn logs')")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tcnd daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isRunning() {
			fmt.Println("Daemon is not running")
			return nil
		}

		tcnDir, err := config.TCNDir()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(tcnDir, pidFile))
		if err != nil {
			return fmt.Errorf("read PID file: %w", err)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("parse PID: %w", err)
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process: %w", err)
		}

		fmt.Print("Stopping daemon...")
		if err := process.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("send signal: %w", err)
		}

		for i := 0; i < 50; i++ {
			time.Sleep(100 * time.Millisecond)
			if !isRunning() {
				fmt.Println(" ✓")
				return nil
			}
			fmt.Print(".")
		}

		fmt.Println(" ✗")
		return fmt.Errorf("daemon did not stop gracefully")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and storage status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isRunning() {
			fmt.Println("Status: stopped")
			return nil
		}

		resp, err := httpClient.Get(daemonAddr + "/v1/status")
		if err != nil {
			return fmt.Errorf("get status: %w", err)
		}
		defer resp.Body.Close()

		var status struct {
			Status        string `json:"status"`
			Version       string `json:"version"`
			Backend       string `json:"backend"`
			Storage       string `json:"storage"`
			Events        bool   `json:"events"`
			PayrollAnchor string `json:"payroll_anchor"`
			PayPeriod     struct {
				StartFormatted string `json:"startFormatted"`
				EndFormatted   string `json:"endFormatted"`
			} `json:"pay_period"`
			Uptime int `json:"uptime_seconds"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("parse status: %w", err)
		}

		fmt.Printf("Status:     %s\n", status.Status)
		fmt.Printf("Version:    %s\n", status.Version)
		fmt.Printf("Backend:    %s (%s)\n", status.Backend, status.Storage)
		fmt.Printf("Events:     %t\n", status.Events)
		fmt.Printf("Pay period: %s - %s (anchor %s)\n",
			status.PayPeriod.StartFormatted, status.PayPeriod.EndFormatted, status.PayrollAnchor)
		fmt.Printf("Uptime:     %s\n", time.Duration(status.Uptime)*time.Second)
		fmt.Printf("Address:    %s\n", daemonAddr)
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon log lines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tcnDir, err := config.TCNDir()
		if err != nil {
			return err
		}
		logPath := filepath.Join(tcnDir, "logs", "tcnd.log")

		file, err := os.Open(logPath)
		if os.IsNotExist(err) {
			fmt.Println("No log file found. Start the daemon first.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()

		// Seek to end and go back ~4KB for recent logs
		info, err := file.Stat()
		if err != nil {
			return err
		}
		offset := max(info.Size()-4096, 0)
		_, _ = file.Seek(offset, 0)

		reader := bufio.NewReader(file)
		if offset > 0 {
			_, _ = reader.ReadString('\n')
		}
		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			fmt.Println(scanner.Text())
		}
		return scanner.Err()
	},
}

// findDaemonBinary locates the tcnd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("tcnd"); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "tcnd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/tcnd", "./tcnd", "./cmd/tcnd/tcnd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("tcnd binary not found (build with 'go build ./cmd/tcnd')")
}

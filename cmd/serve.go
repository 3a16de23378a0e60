package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/civic/internal/api"
	"github.com/joescharf/civic/internal/daemon"
	"github.com/joescharf/civic/internal/output"
)

const (
	shutdownTimeout = 10 * time.Second
	stopTimeout     = 5 * time.Second
)

var serveForce bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the civic REST API server",
	Long: `Run the REST API in the foreground. By default it listens on port 8080.
Use --port to change it, or 'civic serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
	serveStopCmd.Flags().BoolVar(&serveForce, "force", false, "Kill the server if it does not stop in time")

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file tracking the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "civic-serve.pid"))
}

// serveLogPath returns the log file the background server writes to.
func serveLogPath() string {
	return filepath.Join(stateDir(), "civic-serve.log")
}

func stateDir() string {
	if dir := viper.GetString("state_dir"); dir != "" {
		return dir
	}
	dir, _ := configDirFunc()
	return dir
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	s, err := getStore()
	if err != nil {
		return err
	}
	m, err := getManager()
	if err != nil {
		return err
	}
	l, err := getLogger()
	if err != nil {
		return err
	}

	srv := api.NewServer(s, m, triage, newLLMClient(), l.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("port")),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		l.Info("http server listening", zap.String("addr", httpServer.Addr))
		serverErrors <- httpServer.ListenAndServe()
	}()
	ui.Info("Serving API at http://localhost%s", httpServer.Addr)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		l.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("server shutdown error", zap.Error(err))
		return err
	}

	l.Info("server stopped gracefully")
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	st := pf.Inspect()
	if st.Running {
		return fmt.Errorf("%w (PID %d)", daemon.ErrAlreadyRunning, st.PID)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	if dryRun {
		ui.DryRunMsg("Would start %s %v (log: %s)", exe, args, serveLogPath())
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(serveLogPath()), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := child.Process.Release(); err != nil {
		return fmt.Errorf("detach server: %w", err)
	}

	ui.Success("Server started on port %d (PID %s)", viper.GetInt("port"), output.Cyan(strconv.Itoa(child.Process.Pid)))
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	st := pf.Inspect()
	if !st.Running {
		if st.Stale {
			_ = pf.Remove()
		}
		return errors.New("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (PID %d)", st.PID)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if _, running := pf.IsRunning(); !running {
			_ = pf.Remove()
			ui.Success("Server stopped (PID %d)", st.PID)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if !serveForce {
		return fmt.Errorf("server (PID %d) did not stop within %s; retry with --force", st.PID, stopTimeout)
	}
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	ui.Warning("Server killed (PID %d)", st.PID)
	return nil
}

func serveStatusRun() error {
	st := pidFile().Inspect()
	switch {
	case st.Running:
		ui.Success("Server running (PID %d)", st.PID)
		ui.Info("Logs: %s", serveLogPath())
	case st.Stale:
		ui.Warning("Server not running (stale PID file %s)", pidFile().Path)
	default:
		ui.Info("Server not running")
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smbsync/internal/app"
	"smbsync/internal/backup"
	"smbsync/internal/config"
	"smbsync/internal/model"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "AddDirectory", "RunBackup").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "smbsync",
	Short: "Back up local directories to SMB shares",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// server command

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage SMB servers",
}

var serverAddCmd = &cobra.Command{
	Use:   "add <address> <share> <username>",
	Short: "Register an SMB server",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(os.Stderr, "Password: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}

		a, err := newApp("RegisterServer")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Service().RegisterServer(&model.RemoteServer{
			Address:   args[0],
			ShareName: args[1],
			Username:  args[2],
			Secret:    string(secret),
		})
		if err != nil {
			return fmt.Errorf("registering server: %w", err)
		}

		fmt.Printf("Server %d registered: //%s/%s\n", id, args[0], args[1])
		return nil
	},
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListServers")
		if err != nil {
			return err
		}
		defer a.Close()

		servers, err := a.Service().ListServers()
		if err != nil {
			return fmt.Errorf("listing servers: %w", err)
		}

		for _, s := range servers {
			fmt.Printf("%d\t//%s/%s\t%s\n", s.ID, s.Address, s.ShareName, s.Username)
		}
		return nil
	},
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <server-id>",
	Short: "Remove a server and all of its directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("RemoveServer")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RemoveServer(id); err != nil {
			return fmt.Errorf("removing server: %w", err)
		}

		fmt.Printf("Server %d removed\n", id)
		return nil
	},
}

var serverTestCmd = &cobra.Command{
	Use:   "test <server-id>",
	Short: "Test the connection to a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("TestConnection")
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Service().TestConnection(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("testing connection: %w", err)
		}
		if !ok {
			fmt.Println("Connection failed")
			return fmt.Errorf("could not connect to server %d", id)
		}

		fmt.Println("Connection successful")
		return nil
	},
}

// dir command

var dirCmd = &cobra.Command{
	Use:   "dir",
	Short: "Manage backed-up directories",
}

var dirAddDisplayName string

var dirAddCmd = &cobra.Command{
	Use:   "add <server-id> <path>",
	Short: "Register a directory for backup and queue its first upload",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("AddDirectory")
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.AddDirectory(serverID, args[1], dirAddDisplayName)
		if errors.Is(err, backup.ErrAlreadySaved) {
			fmt.Println("Directory is already saved for this server")
			return nil
		}
		if err != nil {
			return fmt.Errorf("adding directory: %w", err)
		}

		fmt.Printf("Directory %d saved and queued for upload\n", dir.ID)
		return nil
	},
}

var dirListCmd = &cobra.Command{
	Use:   "list <server-id>",
	Short: "List directories saved for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ListDirectories")
		if err != nil {
			return err
		}
		defer a.Close()

		dirs, err := a.Service().ListDirectories(serverID)
		if err != nil {
			return fmt.Errorf("listing directories: %w", err)
		}

		for _, d := range dirs {
			lastSync := "never"
			if d.LastSyncedAt != nil {
				lastSync = d.LastSyncedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%d\t%s\tlast synced: %s\n", d.ID, d.LocalPath, lastSync)
		}
		return nil
	},
}

var dirRemoveCmd = &cobra.Command{
	Use:   "remove <server-id> <dir-id>",
	Short: "Stop backing up a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}
		dirID, err := parseID(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("RemoveDirectory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RemoveDirectory(dirID, serverID); err != nil {
			return fmt.Errorf("removing directory: %w", err)
		}

		fmt.Printf("Directory %d removed\n", dirID)
		return nil
	},
}

var dirResyncCmd = &cobra.Command{
	Use:   "resync <server-id> <dir-id>",
	Short: "Queue an already-saved directory for re-sync",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}
		dirID, err := parseID(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("RequeueDirectory")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().RequeueDirectory(dirID, serverID); err != nil {
			return fmt.Errorf("requeueing directory: %w", err)
		}

		fmt.Printf("Directory %d queued for re-sync\n", dirID)
		return nil
	},
}

// run command

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the upload engine",
}

var runBackupCmd = &cobra.Command{
	Use:   "backup <server-id>",
	Short: "Upload pending directories, overwriting remote files",
	Args:  cobra.ExactArgs(1),
	RunE:  makeRunCmd(backup.ModeBackup, "RunBackup"),
}

var runSyncCmd = &cobra.Command{
	Use:   "sync <server-id>",
	Short: "Upload pending directories, skipping files already on the share",
	Args:  cobra.ExactArgs(1),
	RunE:  makeRunCmd(backup.ModeSync, "RunSync"),
}

func makeRunCmd(mode backup.Mode, operation string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(operation)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.Run(ctx, serverID, mode); err != nil {
			return fmt.Errorf("running upload: %w", err)
		}
		return nil
	}
}

// queue command

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending-sync queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list <server-id>",
	Short: "List pending sync items for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ListPending")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Service().PendingItems(serverID)
		if err != nil {
			return fmt.Errorf("listing queue: %w", err)
		}

		for _, item := range items {
			fmt.Printf("%d\tdir %d\t%s\n", item.ID, item.DirectoryID, item.LocalPath)
		}
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear <server-id>",
	Short: "Clear pending sync items for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverID, err := parseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ClearPending")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().ClearPending(serverID); err != nil {
			return fmt.Errorf("clearing queue: %w", err)
		}

		fmt.Println("Pending queue cleared")
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}

func init() {
	configCmd.AddCommand(configInitCmd, configListCmd)
	serverCmd.AddCommand(serverAddCmd, serverListCmd, serverRemoveCmd, serverTestCmd)
	dirAddCmd.Flags().StringVar(&dirAddDisplayName, "name", "", "remote directory name (defaults to the local base name)")
	dirCmd.AddCommand(dirAddCmd, dirListCmd, dirRemoveCmd, dirResyncCmd)
	runCmd.AddCommand(runBackupCmd, runSyncCmd)
	queueCmd.AddCommand(queueListCmd, queueClearCmd)
	rootCmd.AddCommand(configCmd, serverCmd, dirCmd, runCmd, queueCmd)
}

// Command pwtrain is a local memorization trainer for passwords you already own.
// It keeps only salted Argon2id hashes in a single store file and quizzes you
// against them.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hussein-Mazeh/pwtrainer/internal/config"
	"github.com/Hussein-Mazeh/pwtrainer/internal/logger"
	"github.com/Hussein-Mazeh/pwtrainer/internal/service"
	"github.com/Hussein-Mazeh/pwtrainer/internal/session"
	"github.com/Hussein-Mazeh/pwtrainer/internal/vault"
)

var version = "dev" // set by the linker

type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	root := newRootCmd()
	err := root.Execute()
	os.Exit(handleError(err, root.ErrOrStderr()))
}

// handleError prints err for the user and returns the process exit code.
func handleError(err error, w io.Writer) int {
	if err == nil {
		return 0
	}

	var uerr userError
	switch {
	case errors.Is(err, vault.ErrUnsupportedVersion):
		fmt.Fprintf(w, "%v\nthis store was written by a different pwtrain version; use a matching version to open it\n", err)
		return 1
	case errors.Is(err, vault.ErrCorruptStore):
		fmt.Fprintf(w, "%v\nthe store file is damaged; delete it or restore it from a backup\n", err)
		return 1
	case errors.As(err, &uerr):
		fmt.Fprintln(w, uerr.Error())
		return 1
	}

	fmt.Fprintf(w, "unexpected error: %v\n", err)
	return 2
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pwtrain",
		Short: "Practice typing the passwords you already own.",
		Long: `pwtrain stores salted Argon2id hashes of your passwords, never the
passwords themselves, and quizzes you until you remember them.

Running without a subcommand starts an interactive session.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runSession,
	}
	config.BindFlags(cmd)

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the pwtrain version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

// setup resolves configuration and opens the store for any command.
func setup(cmd *cobra.Command) (*service.Service, *zap.Logger, error) {
	c, err := config.Load(cmd)
	if err != nil {
		return nil, nil, userError{msg: err.Error()}
	}

	log := logger.New()
	if err := log.Init(c.LogLevel); err != nil {
		return nil, nil, userError{msg: err.Error()}
	}

	svc, err := service.New(c.Store, c.Params(), log.Log)
	if err != nil {
		_ = log.Log.Sync()
		return nil, nil, err
	}
	return svc, log.Log, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	svc, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	out := cmd.OutOrStdout()
	ctl := session.New(svc, newTerminal(cmd.InOrStdin(), out), out)
	if err := ctl.Run(); err != nil {
		if errors.Is(err, session.ErrCancelled) {
			fmt.Fprintln(out, "Cancelled")
			return nil
		}
		return err
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print stored account names in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if svc.Created() {
				fmt.Fprintf(cmd.ErrOrStderr(), "no store at %s yet\n", svc.Path())
				return nil
			}
			for _, label := range svc.Labels() {
				fmt.Fprintln(cmd.OutOrStdout(), label)
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the pwtrain configuration file",
	}

	var force bool
	write := &cobra.Command{
		Use:   "write [path]",
		Short: "Write the effective configuration as YAML (default ./pwtrain.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pwtrain.yaml"
			if len(args) == 1 {
				path = args[0]
			}

			c, err := config.Load(cmd)
			if err != nil {
				return userError{msg: err.Error()}
			}

			if _, err := os.Stat(path); err == nil && !force {
				return userError{msg: fmt.Sprintf("%s already exists; pass --force to overwrite", path)}
			}
			if err := config.WriteFile(path, c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", path)
			return nil
		},
	}
	write.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(write)
	return cmd
}

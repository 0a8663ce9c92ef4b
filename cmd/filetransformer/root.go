/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. FILETRANSFORMER_KEY.
const envPrefix = "FILETRANSFORMER"

var BuildVersion = `(missing)`

// app carries the per-invocation state shared by all commands.
type app struct {
	v         *viper.Viper
	stdout    io.Writer
	stderr    io.Writer
	passwords PasswordReader
	logger    *slog.Logger
}

// Main runs the command line in args against the given output streams.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := newApp(stdout, stderr, nil)
	root := newRootCommand(a)
	root.SetArgs(args[1:])

	return root.ExecuteContext(ctx)
}

func newApp(stdout, stderr io.Writer, passwords PasswordReader) *app {
	if passwords == nil {
		passwords = &terminalPasswordReader{}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// Not a flag: only the environment may carry it.
	_ = v.BindEnv("passphrase")

	return &app{
		v:         v,
		stdout:    stdout,
		stderr:    stderr,
		passwords: passwords,
		logger:    slog.New(slog.DiscardHandler),
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "filetransformer [flags] command [flags]",
		Short: "Convert files to authenticated printable containers and back",
		Long: `Transform writes each file as a Base64-framed AES-GCM container under a
random name. Restore authenticates a container and recreates the original file
under its embedded name. Nothing is written unless the whole run succeeds.

Every flag can also be set through the environment, e.g. FILETRANSFORMER_KEY.
A passphrase may be given as FILETRANSFORMER_PASSPHRASE instead of the prompt.`,
		Version:       BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}

			a.setupLogging(a.v.GetBool("verbose"))

			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging and detailed errors")
	pf.BoolP("quiet", "q", false, "Suppress non-error output")
	pf.StringP("key", "k", "", "Key, hex-encoded (16, 24 or 32 bytes)")
	pf.StringP("key-file", "f", "", "Path to a file holding the hex-encoded key")
	pf.String("kdf", kdfSHA256, "Passphrase key derivation: sha256, argon2id or pbkdf2")
	pf.String("salt", "", "Hex-encoded salt for argon2id and pbkdf2 (at least 16 bytes)")
	pf.StringP("out", "o", "", "Output directory (default: the directory of each input)")
	pf.BoolP("delete", "d", false, "Delete each input after it was processed successfully")
	pf.IntP("parallel", "j", runtime.NumCPU(), "Number of files processed at once")
	pf.Bool("checksum", false, "Print the SHA-256 of every produced file")

	root.AddCommand(newTransformCommand(a), newRestoreCommand(a), newKeygenCommand(a))

	return root
}

func (a *app) setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

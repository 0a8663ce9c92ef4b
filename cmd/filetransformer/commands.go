/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gitrgoliveira/go-filetransformer"
)

func newTransformCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transform [flags] files...",
		Aliases: []string{"t"},
		Short:   "Write each file as a container under a random name",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, args)
			if err != nil {
				return err
			}
			return a.process(cmd.Context(), cfg, opTransform)
		},
	}

	cmd.Flags().String("ext", "enc", "Extension appended to container names, empty for none")
	cmd.Flags().String("chunk-size", humanize.IBytes(filetransformer.DefaultChunkSize),
		"Plaintext chunk size, a multiple of 3 (e.g. 3MiB or 3000)")

	return cmd
}

func newRestoreCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "restore [flags] containers...",
		Aliases: []string{"r"},
		Short:   "Recreate the original files from containers",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, args)
			if err != nil {
				return err
			}
			return a.process(cmd.Context(), cfg, opRestore)
		},
	}

	cmd.Flags().Bool("overwrite", false, "Replace an existing file with the restored one")

	return cmd
}

func newKeygenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keygen",
		Aliases: []string{"gen"},
		Short:   "Print a random hex-encoded key, or a salt for --kdf",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			size := a.v.GetInt("size")

			var (
				b   []byte
				err error
			)
			if a.v.GetBool("as-salt") {
				b, err = filetransformer.GenerateSalt(size)
			} else {
				b, err = filetransformer.GenerateKey(size)
			}
			if err != nil {
				return err
			}
			defer filetransformer.ZeroKey(b)

			_, err = fmt.Fprintln(a.stdout, hex.EncodeToString(b))
			return err
		},
	}

	cmd.Flags().Int("size", filetransformer.DefaultKeySize, "Size in bytes: 16, 24 or 32 for keys")
	cmd.Flags().Bool("as-salt", false, "Generate a salt instead of a key")

	return cmd
}

/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/gitrgoliveira/go-filetransformer/secure"
)

// PasswordReader reads passphrases from a terminal-like input.
type PasswordReader interface {
	// IsTerminal reports whether the input is a terminal (TTY).
	IsTerminal() bool
	// ReadPassword writes the prompt to the output and reads a password from the input.
	ReadPassword(prompt string, output io.Writer) ([]byte, error)
}

type terminalPasswordReader struct{}

func (*terminalPasswordReader) IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 -- file descriptor
}

func (*terminalPasswordReader) ReadPassword(prompt string, output io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(output, prompt); err != nil {
		return nil, fmt.Errorf("failed to write prompt: %w", err)
	}

	password, err := term.ReadPassword(int(os.Stdin.Fd())) // #nosec G115 -- file descriptor
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	if _, err := fmt.Fprintln(output); err != nil {
		return nil, fmt.Errorf("failed to write newline: %w", err)
	}

	return password, nil
}

// PromptPassword reads a passphrase, optionally asking for it twice.
func PromptPassword(reader PasswordReader, output io.Writer, confirm bool) ([]byte, error) {
	if reader == nil {
		reader = &terminalPasswordReader{}
	}

	if output == nil {
		return nil, errors.New("output writer cannot be nil")
	}

	if !reader.IsTerminal() {
		return nil, errors.New("passphrase input requires a terminal; set FILETRANSFORMER_PASSPHRASE or use --key")
	}

	password, err := reader.ReadPassword("Enter passphrase: ", output)
	if err != nil {
		return nil, err
	}

	if len(password) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}

	if !confirm {
		return password, nil
	}

	again, err := reader.ReadPassword("Confirm passphrase: ", output)
	if err != nil {
		secure.Zero(password)
		return nil, fmt.Errorf("failed to read confirmation: %w", err)
	}
	defer secure.Zero(again)

	if !bytes.Equal(password, again) {
		secure.Zero(password)
		return nil, errors.New("passphrases do not match")
	}

	return password, nil
}

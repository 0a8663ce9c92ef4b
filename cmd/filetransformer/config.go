/*
 * This Source Code Form is subject to the terms of the Mozilla Public License, v. 2.0.
 * If a copy of the MPL was not distributed with this file, You can obtain one at
 * https://mozilla.org/MPL/2.0/.
 */

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/gitrgoliveira/go-filetransformer"
)

const (
	kdfSHA256   = "sha256"
	kdfArgon2id = "argon2id"
	kdfPBKDF2   = "pbkdf2"
)

// Config is the merged view of flags and FILETRANSFORMER_* variables.
type Config struct {
	Key        string `mapstructure:"key"        validate:"omitempty,hexadecimal,excluded_with=KeyFile"`
	KeyFile    string `mapstructure:"key-file"   validate:"omitempty,file"`
	Passphrase string `mapstructure:"passphrase"`
	KDF        string `mapstructure:"kdf"        validate:"oneof=sha256 argon2id pbkdf2"`
	Salt       string `mapstructure:"salt"       validate:"omitempty,hexadecimal,min=32"`

	Out       string `mapstructure:"out"        validate:"omitempty,dir"`
	Ext       string `mapstructure:"ext"`
	ChunkSize string `mapstructure:"chunk-size"`
	Parallel  int    `mapstructure:"parallel"   validate:"min=1"`

	Delete    bool `mapstructure:"delete"`
	Overwrite bool `mapstructure:"overwrite"`
	Checksum  bool `mapstructure:"checksum"`
	Quiet     bool `mapstructure:"quiet"`
	Verbose   bool `mapstructure:"verbose"`

	// Positional arguments
	Files []string `mapstructure:"-" validate:"min=1,dive,required"`
}

// loadConfig unmarshals v and attaches the positional file arguments.
func loadConfig(v *viper.Viper, files []string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Files = files

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration against the struct tags.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validating configuration: %w", err)
	}

	if c.Key == "" && c.KeyFile == "" && c.KDF != kdfSHA256 && c.Salt == "" {
		return fmt.Errorf("--salt is required with --kdf %s", c.KDF)
	}

	if _, err := c.chunkSize(); err != nil {
		return err
	}

	return nil
}

// chunkSize parses the human-readable chunk size; zero means the default.
func (c *Config) chunkSize() (int, error) {
	if c.ChunkSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("invalid --chunk-size %q: %w", c.ChunkSize, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid --chunk-size %q: must be positive", c.ChunkSize)
	}
	if n > filetransformer.MaxChunkSize {
		return 0, fmt.Errorf("--chunk-size %s exceeds %s", c.ChunkSize, humanize.IBytes(filetransformer.MaxChunkSize))
	}

	return int(n), nil // #nosec G115 -- bounded above
}

// options maps the configuration onto Transformer options.
func (c *Config) options(logger *slog.Logger, progress filetransformer.ProgressFunc) []filetransformer.Option {
	opts := []filetransformer.Option{
		filetransformer.WithLogger(logger),
		filetransformer.WithChecksum(c.Checksum),
		filetransformer.WithOverwrite(c.Overwrite),
		filetransformer.WithProgress(progress),
	}

	if n, _ := c.chunkSize(); n > 0 {
		opts = append(opts, filetransformer.WithChunkSize(n))
	}

	return opts
}

// resolveKey returns the AEAD key from --key, --key-file or a passphrase, in
// that order. A passphrase comes from the environment or the terminal.
func (c *Config) resolveKey(passwords PasswordReader, prompt io.Writer, confirm bool) ([]byte, error) {
	switch {
	case c.Key != "":
		return decodeHexKey(c.Key)
	case c.KeyFile != "":
		data, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		defer filetransformer.ZeroKey(data)

		return decodeHexKey(strings.TrimSpace(string(data)))
	}

	var passphrase []byte
	if c.Passphrase != "" {
		passphrase = []byte(c.Passphrase)
	} else {
		p, err := PromptPassword(passwords, prompt, confirm)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		passphrase = p
	}
	defer filetransformer.ZeroKey(passphrase)

	if c.KDF == kdfSHA256 {
		return filetransformer.DeriveKeySHA256(passphrase)
	}

	salt, err := hex.DecodeString(c.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid --salt: %w", err)
	}

	switch c.KDF {
	case kdfArgon2id:
		return filetransformer.DeriveKeyArgon2(passphrase, salt,
			filetransformer.DefaultArgon2Time,
			filetransformer.DefaultArgon2Memory,
			filetransformer.DefaultArgon2Threads,
			filetransformer.DefaultKeySize)
	case kdfPBKDF2:
		return filetransformer.DeriveKeyPBKDF2(passphrase, salt, filetransformer.DefaultPBKDF2Iterations, filetransformer.DefaultKeySize)
	default:
		return nil, fmt.Errorf("unknown --kdf %q", c.KDF)
	}
}

func decodeHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}

	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		filetransformer.ZeroKey(key)
		return nil, errors.New("key must be 16, 24 or 32 bytes (32, 48 or 64 hex characters)")
	}
}

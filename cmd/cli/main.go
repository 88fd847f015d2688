// cmd/cli/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stash-bot/internal/backup"
	"stash-bot/internal/config"
	"stash-bot/internal/storage"
	st "stash-bot/internal/storagetypes"
	v "stash-bot/internal/version"
	"stash-bot/pkg/util"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := newRootCmd(cfg).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the offline admin CLI. The store path defaults to the bot's
// STORAGE_PATH and can be overridden with --store.
func newRootCmd(cfg *config.Config) *cobra.Command {
	storePath := cfg.StoragePath

	root := &cobra.Command{
		Use:          "stash-cli",
		Short:        "Inspect, export and back up the stash store",
		Version:      v.String(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&storePath, "store", storePath, "path to the store file")

	open := func() (*storage.Storage, error) {
		if _, err := os.Stat(storePath); err != nil {
			return nil, fmt.Errorf("store file %q: %w", storePath, err)
		}
		return storage.New(storePath)
	}

	root.AddCommand(
		newKeysCmd(open),
		newGetCmd(open),
		newExportCmd(open),
		newImportCmd(open, cfg.WorkerLimit),
		newBackupCmd(open, cfg),
	)
	return root
}

type opener func() (*storage.Storage, error)

func newKeysCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <user-id>",
		Short: "List a user's keys in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.ListKeys(cmd.Context(), user)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newGetCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id> <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUser(args[0])
			if err != nil {
				return err
			}
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			value, ok, err := store.Get(cmd.Context(), user, args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s has no key %q", user, args[1])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newExportCmd(open opener) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump every entry as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []st.Entry{}
			}
			return writeEntries(cmd.OutOrStdout(), format, entries)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func newImportCmd(open opener, workers int) *cobra.Command {
	var (
		format    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load entries from a JSON or YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			entries, err := readEntries(data, format)
			if err != nil {
				return err
			}

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			// users import in parallel; each user's entries stay in file order
			var groups [][]st.Entry
			index := make(map[st.UserID]int)
			for _, e := range entries {
				i, ok := index[e.UserID]
				if !ok {
					i = len(groups)
					index[e.UserID] = i
					groups = append(groups, nil)
				}
				groups[i] = append(groups[i], e)
			}

			var added, skipped atomic.Int64
			err = util.Parallel(cmd.Context(), groups, workers, func(ctx context.Context, group []st.Entry) error {
				for _, e := range group {
					err := store.Add(ctx, e.UserID, e.Key, e.Value, overwrite)
					switch {
					case err == nil:
						added.Add(1)
					case storage.IsStorageError(err):
						return err
					default:
						skipped.Add(1)
						log.Warn().Err(err).Str("user", e.UserID.String()).Str("key", e.Key).Msg("Entry skipped")
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", added.Load(), skipped.Load())
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "input format: json or yaml (default: from file extension)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing keys")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if format == "" {
			format = formatFromPath(args[0])
		}
		return nil
	}
	return cmd
}

func newBackupCmd(open opener, cfg *config.Config) *cobra.Command {
	dir := cfg.BackupDir

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a snapshot of the store now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			var mirror backup.Uploader
			if cfg.S3.Bucket != "" {
				up, err := backup.NewS3Uploader(cmd.Context(), backup.S3Config(cfg.S3))
				if err != nil {
					return err
				}
				mirror = up
			}

			path, err := backup.NewScheduler(store, backup.Options{Dir: dir, Mirror: mirror}).ForceBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", dir, "directory for snapshot files")
	return cmd
}

func parseUser(s string) (st.UserID, error) {
	id, err := strconv.ParseInt(strings.Trim(s, "<@!>"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return st.UserID(id), nil
}

func writeEntries(w io.Writer, format string, entries []st.Entry) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func readEntries(data []byte, format string) ([]st.Entry, error) {
	var entries []st.Entry
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return entries, nil
}

func formatFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return "yaml"
	default:
		return "json"
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vango-dev/localstate/internal/config"
	"github.com/vango-dev/localstate/internal/errors"
	"github.com/vango-dev/localstate/pkg/storage"
)

func initCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create localstate.json in the current directory",
		Long: `Create localstate.json with default settings.

Examples:
  localstate init
  localstate init --kind=sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			if config.Exists(wd) && !force {
				return errors.New(errors.CodeInvalidConfig).
					WithDetail(config.ConfigFileName + " already exists").
					WithSuggestion("Use --force to overwrite it")
			}

			cfg := config.New()
			if kind != "" {
				cfg.Store.Kind = kind
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			path := filepath.Join(wd, config.ConfigFileName)
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Created %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Store kind")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func getCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the stored value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore()

			value, ok, err := store.GetItem(args[0])
			if err != nil {
				return errors.New(errors.CodeReadFailure).Wrap(err)
			}
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func setCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value under a key",
		Long: `Store a value under a key.

The value must be valid in the configured codec unless --raw is given.

Examples:
  localstate set theme '"dark"'
  localstate set layout '{"columns": 3}'
  localstate set note hello --raw`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !raw {
				var v any
				if err := a.codec.Unmarshal(value, &v); err != nil {
					return fmt.Errorf("value is not valid %s: %w", a.codec.Name(), err)
				}
			}

			store, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.SetItem(key, value); err != nil {
				return errors.New(errors.CodeWriteFailure).Wrap(err)
			}
			a.logger.Debug("item set", "key", key)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value without validating it")

	return cmd
}

func rmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY...",
		Aliases: []string{"remove"},
		Short:   "Remove keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore()

			for _, key := range args {
				if err := store.RemoveItem(key); err != nil {
					return errors.New(errors.CodeWriteFailure).WithDetail("key " + key).Wrap(err)
				}
			}
			return nil
		},
	}
}

func clearCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the %s store without --yes", a.cfg.Store.Kind)
			}
			store, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Clear(); err != nil {
				return errors.New(errors.CodeWriteFailure).Wrap(err)
			}
			success(cmd.OutOrStdout(), "Cleared %s store", a.cfg.Store.Kind)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the store")

	return cmd
}

func keysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.open()
			if err != nil {
				return err
			}
			defer closeStore()

			lister, ok := store.(storage.Lister)
			if !ok {
				return fmt.Errorf("the %s store cannot list keys", a.cfg.Store.Kind)
			}
			keys, err := lister.Keys()
			if err != nil {
				return errors.New(errors.CodeReadFailure).Wrap(err)
			}
			out := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintln(out, k)
			}
			return nil
		},
	}
}

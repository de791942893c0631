package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/adapter"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/failure"
)

func sourceAdapter(cc *commandContext, name string) (adapter.Adapter, error) {
	cfg, log, err := cc.load()
	if err != nil {
		return nil, err
	}
	src, ok := cfg.Source(name)
	if !ok {
		return nil, failure.Validation(fmt.Sprintf("unknown source %q", name), nil)
	}
	return adapter.New(src, newFetcher(cfg), time.Duration(cfg.Logic.TimeoutSec)*time.Second, log)
}

func newFullTextCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fulltext <source> <url>",
		Short: "Print the body text of one article",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sourceAdapter(cc, args[0])
			if err != nil {
				return err
			}
			body, err := a.FetchFullText(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}

func newAuxiliaryCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auxiliary <source> <url>",
		Short: "Print quotes and highlights of one article",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := sourceAdapter(cc, args[0])
			if err != nil {
				return err
			}
			snippets, err := a.FetchAuxiliary(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			for _, s := range snippets {
				fmt.Fprintln(cmd.OutOrStdout(), "- "+s)
			}
			return nil
		},
	}
}

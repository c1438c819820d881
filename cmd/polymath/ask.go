package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xxxsen/polymath/internal/access"
	"github.com/xxxsen/polymath/internal/ai"
	"github.com/xxxsen/polymath/internal/client"
	"github.com/xxxsen/polymath/internal/config"
	"github.com/xxxsen/polymath/internal/library"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
	"github.com/xxxsen/polymath/internal/query"
	"github.com/xxxsen/polymath/internal/service"
)

type staticLibrary struct {
	lib *library.Library
}

func (s staticLibrary) Current() *library.Library {
	return s.lib
}

func newAskCmd() *cobra.Command {
	var (
		configPath   string
		libraries    []string
		servers      []string
		remote       bool
		dev          bool
		clientConfig string
		contextQuery string
		count        int
		showContext  bool
		random       bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "answer a question from local libraries or remote servers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			stack, err := buildAIStack(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer stack.Close()

			var (
				getter service.LibraryGetter
				opts   []service.AskOption
			)
			if len(libraries) > 0 {
				lib, err := service.LoadLibraryFiles(libraries...)
				if err != nil {
					return err
				}
				getter = staticLibrary{lib: lib}
			}
			if remote || len(servers) > 0 {
				ccfg, err := client.LoadConfig(clientConfig)
				if err != nil {
					return err
				}
				for _, target := range ccfg.Targets(servers, dev) {
					opts = append(opts, service.WithRemotes(client.New(target, client.WithCount(count))))
				}
			}
			if getter == nil && len(opts) == 0 {
				return fmt.Errorf("%w: pass --library or --remote", appErr.ErrInvalidRequest)
			}
			engine := query.NewEngine(access.NewResolver(nil), query.NewBudgeter(ai.EstimateTokens))
			svc := service.NewAskService(getter, engine, stack.embedder, stack.answerer, opts...)
			res, err := svc.Ask(cmd.Context(), service.AskRequest{
				Question:     strings.Join(args, " "),
				ContextQuery: contextQuery,
				Random:       random,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, msg := range res.Messages {
				fmt.Fprintln(out, msg)
			}
			if showContext {
				for _, text := range res.Context {
					fmt.Fprintf(out, "%s\n---\n", text)
				}
			}
			fmt.Fprintln(out, res.Answer)
			for _, info := range res.Sources {
				if url := info.URL(); url != "" {
					fmt.Fprintf(out, "- %s\n", url)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "server config providing the ai settings")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "local library file, may be repeated")
	cmd.Flags().StringSliceVar(&servers, "server", nil, "remote server name or endpoint, may be repeated")
	cmd.Flags().BoolVar(&remote, "remote", false, "query every server in the client config")
	cmd.Flags().BoolVar(&dev, "dev", false, "use dev endpoints")
	cmd.Flags().StringVar(&clientConfig, "client-config", client.DefaultConfigFile, "client config file")
	cmd.Flags().StringVar(&contextQuery, "context-query", "", "text embedded to find context, defaults to the question")
	cmd.Flags().IntVar(&count, "count", client.DefaultCount, "token budget requested from each server")
	cmd.Flags().BoolVar(&random, "random", false, "use random context instead of the most similar")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "print the retrieved context")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xxxsen/polymath/internal/access"
	"github.com/xxxsen/polymath/internal/ai"
	appErr "github.com/xxxsen/polymath/internal/pkg/errors"
	"github.com/xxxsen/polymath/internal/query"
	"github.com/xxxsen/polymath/internal/service"
)

func newQueryCmd() *cobra.Command {
	var (
		libraries   []string
		requestPath string
		accessFile  string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "run one query against local library files and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(libraries) == 0 {
				return fmt.Errorf("%w: --library is required", appErr.ErrInvalidRequest)
			}
			lib, err := service.LoadLibraryFiles(libraries...)
			if err != nil {
				return err
			}
			raw, err := readRawRequest(cmd.InOrStdin(), requestPath)
			if err != nil {
				return err
			}
			req, err := raw.Normalize()
			if err != nil {
				return err
			}
			var provider access.Provider
			if accessFile != "" {
				provider = access.NewFileProvider(accessFile)
			}
			engine := query.NewEngine(access.NewResolver(provider), query.NewBudgeter(ai.EstimateTokens))
			res, err := engine.Query(cmd.Context(), lib, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "\t")
			return enc.Encode(res.Serializable(false))
		},
	}
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "library file, may be repeated")
	cmd.Flags().StringVar(&requestPath, "request", "-", "request json file, - for stdin")
	cmd.Flags().StringVar(&accessFile, "access-file", "", "trust configuration used to resolve access_token")
	return cmd
}

func readRawRequest(stdin io.Reader, path string) (*query.RawRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var raw query.RawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode request: %v", appErr.ErrInvalidRequest, err)
	}
	return &raw, nil
}

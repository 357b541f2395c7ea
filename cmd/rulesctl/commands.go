package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var country string
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Retrieve ranked rule passages for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"question": strings.Join(args, " "),
			}
			if country != "" {
				payload["country"] = country
			}
			return postAndPrint(cmd, "/v1/query", payload)
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "ISO country code for local rule interpretations")
	return cmd
}

func newIngestCmd() *cobra.Command {
	var (
		variant string
		country string
		path    string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Request ingestion of a rulebook into a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return postAndPrint(cmd, "/v1/ingest", map[string]any{
				"variant": variant,
				"country": country,
				"path":    path,
				"replace": replace,
			})
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "outdoor", "rule-set variant (outdoor, indoor, hockey5s)")
	cmd.Flags().StringVar(&country, "country", "", "ISO country code; empty means the official rulebook")
	cmd.Flags().StringVar(&path, "path", "", "path to the rulebook PDF, as seen by the worker")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite the scope if it already holds chunks")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [run-id]",
		Short: "Show the state of an ingestion run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint(cmd, "/v1/runs/"+args[0])
		},
	}
}

func newJurisdictionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jurisdictions",
		Short: "List countries with ingested local rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getAndPrint(cmd, "/v1/jurisdictions")
		},
	}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

func postAndPrint(cmd *cobra.Command, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := httpClient.Post(apiBaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(cmd, resp)
}

func getAndPrint(cmd *cobra.Command, path string) error {
	resp, err := httpClient.Get(apiBaseURL + path)
	if err != nil {
		return fmt.Errorf("call api: %w", err)
	}
	defer resp.Body.Close()
	return printResponse(cmd, resp)
}

func printResponse(cmd *cobra.Command, resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Write(raw)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api returned %s", resp.Status)
	}
	return nil
}

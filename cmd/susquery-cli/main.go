// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command susquery-cli is the terminal client for the SUS query server.
//
// Usage:
//
//	susquery-cli ask "Quantas pessoas morreram em Porto Alegre?"
//	susquery-cli chat
//	SUSQUERY_BASE_URL=http://remote:8080 susquery-cli ask "..."
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// conversationalFlag switches ask to the conversational endpoint.
var conversationalFlag bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "susquery-cli",
		Short: "Ask natural-language questions over the SUS hospital dataset",
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askCmd.Flags().BoolVar(&conversationalFlag, "conversational", false,
		"Phrase the answer conversationally instead of printing raw results")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with session memory",
		Run:   runChatCommand,
	}
	chatCmd.Flags().String("resume", "", "Resume an existing session id")

	rootCmd.AddCommand(askCmd, chatCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getServerBaseURL resolves the server address from the environment.
func getServerBaseURL() string {
	if url := os.Getenv("SUSQUERY_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Success       bool             `json:"success"`
	SQLQuery      string           `json:"sql_query"`
	Results       []map[string]any `json:"results"`
	RowCount      int              `json:"row_count"`
	ExecutionTime float64          `json:"execution_time"`
	ErrorMessage  string           `json:"error_message"`
}

type conversationalResponse struct {
	queryResponse
	Message     string   `json:"message"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
	SessionID   string   `json:"session_id"`
}

var httpClient = &http.Client{Timeout: 5 * time.Minute}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Pergunta: %s\n---\n", question)

	if conversationalFlag {
		resp, err := sendConversational(question, "")
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		printConversational(resp)
		return
	}

	resp, err := sendQuery(question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	printStructured(resp)
}

func runChatCommand(cmd *cobra.Command, _ []string) {
	sessionID, _ := cmd.Flags().GetString("resume")
	if sessionID != "" {
		fmt.Printf("Retomando sessão %s\n", sessionID)
	}
	fmt.Println("Converse sobre os dados do SUS. Digite 'ajuda' para ver os comandos.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "sair" || question == "exit" || question == "quit" {
			break
		}
		if handled := runMetaCommand(question); handled {
			continue
		}

		resp, err := sendConversational(question, sessionID)
		if err != nil {
			fmt.Printf("Erro: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		printConversational(resp)
	}

	if sessionID != "" {
		fmt.Printf("\nSessão: %s (use --resume para continuar)\n", sessionID)
	}
}

// runMetaCommand handles the REPL commands that query the server's
// informational endpoints instead of the pipeline. Returns true when the
// input was a command.
func runMetaCommand(input string) bool {
	switch strings.ToLower(input) {
	case "ajuda", "help":
		fmt.Println(`Comandos:
  esquema   - mostra o esquema do banco de dados
  stats     - estatísticas das consultas processadas
  ajuda     - esta mensagem
  sair      - encerra a conversa

Qualquer outra entrada é tratada como pergunta sobre os dados do SUS.`)
		return true
	case "esquema", "schema":
		printEndpoint("/v1/query/schema")
		return true
	case "stats", "estatisticas", "estatísticas":
		printEndpoint("/v1/query/stats")
		return true
	}
	return false
}

// printEndpoint pretty-prints a GET endpoint's JSON body.
func printEndpoint(path string) {
	resp, err := httpClient.Get(getServerBaseURL() + path)
	if err != nil {
		fmt.Printf("Erro: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Erro: %v\n", err)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func sendQuery(question string) (*queryResponse, error) {
	body, err := postJSON("/v1/query", queryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func sendConversational(question, sessionID string) (*conversationalResponse, error) {
	body, err := postJSON("/v1/query/conversational", queryRequest{
		Question:  question,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}
	var resp conversationalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func postJSON(path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Post(getServerBaseURL()+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printStructured(resp *queryResponse) {
	if !resp.Success {
		fmt.Printf("Falha: %s\n", resp.ErrorMessage)
		return
	}
	fmt.Printf("SQL: %s\n", resp.SQLQuery)
	fmt.Printf("Resultados (%d linhas, %.2fs):\n", resp.RowCount, resp.ExecutionTime)
	for i, row := range resp.Results {
		if i >= 20 {
			fmt.Printf("... e mais %d linhas\n", len(resp.Results)-20)
			break
		}
		fmt.Printf("  %v\n", row)
	}
}

func printConversational(resp *conversationalResponse) {
	fmt.Printf("\n%s\n", resp.Message)
	if len(resp.Suggestions) > 0 {
		fmt.Println("\nSugestões:")
		for _, s := range resp.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
	fmt.Printf("\n(confiança %.0f%%)\n", resp.Confidence*100)
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/papermind/internal/composer"
	"github.com/kalambet/papermind/internal/config"
	"github.com/kalambet/papermind/internal/history"
	"github.com/kalambet/papermind/internal/storage"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF so it can be chatted with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s", args[0])
		resp, err := client.upload(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var result struct {
			Message  string           `json:"message"`
			Document storage.Document `json:"document"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		d := result.Document
		printSuccess("Processed %s: %d pages, %d chunks", d.Name, d.Pages, d.Chunks)
		fmt.Fprintln(cmd.OutOrStdout(), d.ID)
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <documentId> <message>",
	Short: "Ask a question about an uploaded document",
	Long: `Ask a question about an uploaded document. The answer is streamed as it
is generated, followed by the passages it was based on.

Examples:
  papermind chat 3f2a... "What is the main finding?"
  papermind chat 3f2a... "Explain the method" --role student`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		showSources, _ := cmd.Flags().GetBool("sources")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		message := strings.Join(args[1:], " ")
		reply, err := client.chat(cmd.Context(), args[0], message, role, func(frag string) {
			fmt.Fprint(out, frag)
		})
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprintln(out)

		if showSources && len(reply.Sources) > 0 {
			fmt.Fprintln(out)
			labelColor.Fprintln(out, "Sources:")
			for _, s := range reply.Sources {
				fmt.Fprintf(out, "  p.%d  %s  %s\n", s.Page, dimColor.Sprintf("(%.3f)", s.Confidence), s.Excerpt)
			}
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().String("role", string(composer.RoleGeneral), "answer style: student, teacher, researcher or general")
	chatCmd.Flags().Bool("sources", true, "print the passages the answer is based on")
}

// --- documents ---

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/documents")
		if err != nil {
			return err
		}
		var docs []storage.Document
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			fmt.Fprintln(out, "No documents uploaded yet.")
			return nil
		}
		for _, d := range docs {
			fmt.Fprintf(out, "%s  %s  %s\n",
				labelColor.Sprint(d.ID), d.Name,
				dimColor.Sprintf("%d pages, %d chunks, %s", d.Pages, d.Chunks, d.ProcessedAt.Local().Format(time.DateTime)))
		}
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear a document's conversation history",
}

var historyShowCmd = &cobra.Command{
	Use:   "show <documentId>",
	Short: "Print the stored conversation for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/chat/"+url.PathEscape(args[0])+"/history")
		if err != nil {
			return err
		}
		var entries []history.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No conversation yet.")
			return nil
		}
		for _, e := range entries {
			who := "you"
			c := stepColor
			if e.Role == history.RoleModel {
				who, c = "ai", successColor
			}
			fmt.Fprintf(out, "%s %s\n", c.Sprintf("[%s]", who), e.Content)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <documentId>",
	Short: "Forget the conversation for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/api/chat/"+url.PathEscape(args[0])+"/history")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			return responseError(resp)
		}
		printSuccess("Cleared history for %s", args[0])
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyShowCmd, historyClearCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and configuration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgErr := config.Load()
		if cfgErr != nil {
			printError("config error: %v", cfgErr)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.httpClient.Timeout = 2 * time.Second

		resp, err := client.get(cmd.Context(), "/status")
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			var st struct {
				Ready   bool   `json:"ready"`
				Version string `json:"version"`
			}
			if err := decodeJSON(resp, &st); err != nil {
				printStatus("Server", "error (%v)", err)
			} else {
				readiness := "ready"
				if !st.Ready {
					readiness = "not ready"
				}
				printStatus("Server", "running at %s, %s (version %s)", client.baseURL, readiness, st.Version)
			}
		}

		if cfgErr == nil {
			printStatus("Vector store", "%s", cfg.VectorStore.Backend)
			printStatus("Chat model", "%s", cfg.Gemini.ChatModel)
			printStatus("Embed model", "%s", cfg.Gemini.EmbedModel)
			printStatus("Data dir", "%s", cfg.Storage.DataDir)
			if cfg.Gemini.APIKey == "" {
				printWarning("GEMINI_API_KEY is not set")
			}
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		keys := config.ShowAll(cfg)
		out := cmd.OutOrStdout()
		if asJSON {
			m := make(map[string]string, len(keys))
			for _, k := range keys {
				m[k.Key] = k.Value
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %s %s\n", labelColor.Sprint(k.Key), k.Value, dimColor.Sprintf("(%s)", k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configShowCmd.Flags().Bool("json", false, "print as JSON")
	configCmd.AddCommand(configShowCmd, configSetCmd)

	rootCmd.AddCommand(uploadCmd, chatCmd, documentsCmd, historyCmd, statusCmd, configCmd)
}

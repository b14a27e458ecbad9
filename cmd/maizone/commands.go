package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/internetsb/maizone/internal/config"
)

// --- post ---

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Generate and publish a feed now",
	Long: `Generate and publish a feed now, bypassing the schedule gate.

Examples:
  maizone post
  maizone post --topic 周末`,
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/actions/post", map[string]string{"topic": topic})
		if err != nil {
			return err
		}

		var post struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		}
		if err := decodeJSON(resp, &post); err != nil {
			return err
		}

		printSuccess("Published feed %s", post.ID)
		fmt.Println(post.Content)
		return nil
	},
}

func init() {
	postCmd.Flags().String("topic", "", "topic to write about (empty picks from the pool)")
}

// --- browse ---

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Run one browse pass over recent feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/actions/browse", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Browse pass complete")
		return nil
	},
}

// --- diary ---

var diaryCmd = &cobra.Command{
	Use:   "diary",
	Short: "Generate or read diary entries",
}

var diaryWriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Generate the diary for a date (default today)",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/actions/diary", map[string]string{"date": date})
		if err != nil {
			return err
		}

		var entry struct {
			Date    string `json:"date"`
			Content string `json:"content"`
		}
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		printSuccess("Diary written for %s", entry.Date)
		fmt.Println(entry.Content)
		return nil
	},
}

var diaryShowCmd = &cobra.Command{
	Use:   "show <date>",
	Short: "Show the diary entry for a date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/diary/"+args[0])
		if err != nil {
			return err
		}

		var entry struct {
			Date      string `json:"date"`
			Content   string `json:"content"`
			WordCount int    `json:"word_count"`
			Published bool   `json:"published"`
		}
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		printStatus("Date", "%s", entry.Date)
		printStatus("Words", "%d", entry.WordCount)
		printStatus("Published", "%t", entry.Published)
		fmt.Println(entry.Content)
		return nil
	},
}

func init() {
	diaryWriteCmd.Flags().String("date", "", "date in YYYY-MM-DD format")
	diaryCmd.AddCommand(diaryWriteCmd)
	diaryCmd.AddCommand(diaryShowCmd)
}

// --- posts ---

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List recently published feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/posts?limit=%d", limit))
		if err != nil {
			return err
		}

		var posts []struct {
			ID        string `json:"id"`
			Topic     string `json:"topic"`
			Content   string `json:"content"`
			CreatedAt string `json:"created_at"`
		}
		if err := decodeJSON(resp, &posts); err != nil {
			return err
		}

		if len(posts) == 0 {
			fmt.Println("No posts yet.")
			return nil
		}

		for _, p := range posts {
			fmt.Printf("%s  %s  [%s]\n", colorize(colorCyan, p.ID), p.CreatedAt, p.Topic)
			content := p.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Printf("  %s\n", content)
		}
		return nil
	},
}

func init() {
	postsCmd.Flags().Int("limit", 10, "maximum number of posts to list")
}

// --- dedup ---

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Show handled-feed and replied-comment stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/dedup")
		if err != nil {
			return err
		}

		var snap struct {
			Handled []struct {
				ItemID string `json:"item_id"`
			} `json:"handled"`
			Replied []struct {
				ItemID string   `json:"item_id"`
				SubIDs []string `json:"sub_ids"`
			} `json:"replied"`
		}
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}

		fmt.Printf("%s (%d)\n", colorize(colorBold, "Handled feeds"), len(snap.Handled))
		for _, r := range snap.Handled {
			fmt.Printf("  %s\n", r.ItemID)
		}
		fmt.Printf("%s (%d)\n", colorize(colorBold, "Replied comments"), len(snap.Replied))
		for _, r := range snap.Replied {
			fmt.Printf("  %s: %d replies\n", r.ItemID, len(r.SubIDs))
		}
		return nil
	},
}

// --- persona ---

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Manage the bot persona",
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current persona as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/persona")
		if err != nil {
			return err
		}

		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var personaSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a persona field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/persona", map[string]any{key: value})
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var personaEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open persona JSON in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/persona")
		if err != nil {
			return err
		}

		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "maizone-persona-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}

		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		if len(fields) == 0 {
			printWarning("Nothing to update")
			return nil
		}

		patchResp, err := client.patch(cmd.Context(), "/persona", fields)
		if err != nil {
			return err
		}
		defer patchResp.Body.Close()

		if patchResp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", patchResp.StatusCode)
		}

		printSuccess("Persona updated")
		return nil
	},
}

func init() {
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaSetCmd)
	personaCmd.AddCommand(personaEditCmd)
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
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
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/tenderd/internal/config"
)

// --- tender ---

var tenderCmd = &cobra.Command{
	Use:   "tender",
	Short: "Manage tenders",
}

var tenderCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agency, _ := cmd.Flags().GetString("agency")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"title": args[0]}
		if agency != "" {
			req["agency"] = agency
		}
		resp, err := client.post(cmd.Context(), "/tenders", req)
		if err != nil {
			return err
		}

		var tender struct {
			ID string `json:"ID"`
		}
		if err := decodeJSON(resp, &tender); err != nil {
			return err
		}

		printSuccess("Created tender %s", tender.ID)
		fmt.Println(tender.ID)
		return nil
	},
}

var tenderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenders",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/tenders?limit=%d", limit))
		if err != nil {
			return err
		}

		var tenders []struct {
			ID        string    `json:"ID"`
			Title     string    `json:"Title"`
			Status    string    `json:"Status"`
			CreatedAt time.Time `json:"CreatedAt"`
		}
		if err := decodeJSON(resp, &tenders); err != nil {
			return err
		}

		if len(tenders) == 0 {
			fmt.Println("No tenders found.")
			return nil
		}
		for _, t := range tenders {
			title := t.Title
			if len(title) > 60 {
				title = title[:60] + "..."
			}
			fmt.Printf("%s  %s  %s\n", shortID(t.ID), statusCell(t.Status, 16), title)
		}
		return nil
	},
}

var tenderShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single tender as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tenders/"+args[0])
		if err != nil {
			return err
		}

		var tender any
		if err := decodeJSON(resp, &tender); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tender)
	},
}

func init() {
	tenderCreateCmd.Flags().String("agency", "", "issuing agency")
	tenderListCmd.Flags().Int("limit", 50, "maximum number of tenders to list")
	tenderCmd.AddCommand(tenderCreateCmd)
	tenderCmd.AddCommand(tenderListCmd)
	tenderCmd.AddCommand(tenderShowCmd)
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <tender-id> <file>",
	Short: "Upload a tender document (PDF or text)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenderID, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		mimeType, _ := cmd.Flags().GetString("mime-type")
		if mimeType == "" {
			mimeType = mime.TypeByExtension(filepath.Ext(path))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"filename":  filepath.Base(path),
			"mime_type": mimeType,
			"content":   base64.StdEncoding.EncodeToString(data),
		}
		resp, err := client.post(cmd.Context(), "/tenders/"+tenderID+"/documents", req)
		if err != nil {
			return err
		}

		var result struct {
			ID      string `json:"id"`
			Version int    `json:"version"`
			Status  string `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Document %s (v%d) %s", result.ID, result.Version, result.Status)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("mime-type", "", "override the detected MIME type")
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run <tender-id>",
	Short: "Execute a processing pipeline against a tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipelineName, _ := cmd.Flags().GetString("pipeline")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Running pipeline...")
		req := map[string]any{"user": "cli"}
		if pipelineName != "" {
			req["pipeline"] = pipelineName
		}
		resp, err := client.post(cmd.Context(), "/tenders/"+args[0]+"/runs", req)
		if err != nil {
			return err
		}

		var run struct {
			ID     string `json:"ID"`
			Status string `json:"Status"`
			Error  string `json:"Error"`
			Logs   []struct {
				Level   string `json:"Level"`
				StepID  string `json:"StepID"`
				Message string `json:"Message"`
			} `json:"Logs"`
		}
		if err := decodeJSON(resp, &run); err != nil {
			return err
		}

		for _, l := range run.Logs {
			printRunLog(l.Level, l.StepID, l.Message)
		}

		switch run.Status {
		case "completed":
			printSuccess("Run %s completed", run.ID)
		case "cancelled":
			printWarning("Run %s cancelled", run.ID)
		default:
			printError("Run %s %s: %s", run.ID, run.Status, run.Error)
			return fmt.Errorf("run %s", run.Status)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs <tender-id>",
	Short: "List pipeline runs for a tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tenders/"+args[0]+"/runs?limit=20")
		if err != nil {
			return err
		}

		var runs []struct {
			ID        string    `json:"ID"`
			Pipeline  string    `json:"Pipeline"`
			Status    string    `json:"Status"`
			StartedAt time.Time `json:"StartedAt"`
			Error     string    `json:"Error"`
		}
		if err := decodeJSON(resp, &runs); err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}
		for _, r := range runs {
			line := fmt.Sprintf("%s  %-10s  %s  %s",
				shortID(r.ID),
				r.Pipeline,
				statusCell(r.Status, 10),
				r.StartedAt.Format(time.RFC3339),
			)
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("pipeline", "", "pipeline name (default: standard)")
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review <tender-id>",
	Short: "Show the review package for a tender",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tenders/"+args[0]+"/review")
		if err != nil {
			return err
		}

		if asJSON {
			var pkg any
			if err := decodeJSON(resp, &pkg); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pkg)
		}

		var pkg struct {
			Tender struct {
				Title  string `json:"Title"`
				Status string `json:"Status"`
			} `json:"tender"`
			Checklist []struct {
				Label  string `json:"Label"`
				Status string `json:"Status"`
				Notes  string `json:"Notes"`
			} `json:"checklist"`
			Summary []struct {
				Markdown string `json:"Markdown"`
			} `json:"summary"`
			CanApprove bool `json:"can_approve"`
		}
		if err := decodeJSON(resp, &pkg); err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n\n",
			colorize(colorBold, pkg.Tender.Title),
			colorize(statusColor(pkg.Tender.Status), pkg.Tender.Status))
		for _, b := range pkg.Summary {
			fmt.Println(b.Markdown)
			fmt.Println()
		}
		fmt.Println(colorize(colorBold, "Checklist:"))
		for _, item := range pkg.Checklist {
			mark, color := checklistMark(item.Status)
			line := fmt.Sprintf("%s %s", mark, item.Label)
			if item.Notes != "" {
				line += " (" + item.Notes + ")"
			}
			fmt.Println("  " + colorize(color, line))
		}
		fmt.Println()
		if pkg.CanApprove {
			printSuccess("Ready for approval")
		} else {
			printWarning("Not approvable yet")
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().Bool("json", false, "output the full package as JSON")
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check <tender-id> <item-key> <status>",
	Short: "Manually resolve a checklist item (ok, not_applicable, pending, missing)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")
		notes, _ := cmd.Flags().GetString("notes")
		if actor == "" {
			actor = "cli"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"status": args[2], "notes": notes, "actor": actor}
		resp, err := client.patch(cmd.Context(), "/tenders/"+args[0]+"/checklist/"+args[1], req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Checklist item %s: %s", result["key"], result["status"])
		return nil
	},
}

func init() {
	checkCmd.Flags().String("actor", "", "who is resolving the item")
	checkCmd.Flags().String("notes", "", "reviewer note for the item")
}

// --- approve / reject ---

var approveCmd = &cobra.Command{
	Use:   "approve <tender-id>",
	Short: "Approve a tender that is ready for review",
	Args:  cobra.ExactArgs(1),
	RunE:  decisionRunE("approve"),
}

var rejectCmd = &cobra.Command{
	Use:   "reject <tender-id>",
	Short: "Reject a tender that is ready for review",
	Args:  cobra.ExactArgs(1),
	RunE:  decisionRunE("reject"),
}

func decisionRunE(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")
		note, _ := cmd.Flags().GetString("note")
		if actor == "" {
			actor = "cli"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"action": action, "actor": actor, "note": note}
		resp, err := client.post(cmd.Context(), "/tenders/"+args[0]+"/decision", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Tender %s: %s", args[0], result["status"])
		return nil
	}
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().String("actor", "", "who is making the decision")
		c.Flags().String("note", "", "decision note for the audit trail")
	}
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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template", "tpl"},
	Short:   "Manage sandbox templates",
}

var listTemplatesCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		templates, err := newClient().ListTemplates(ctx)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}

		if len(templates) == 0 {
			fmt.Println("No templates found")
			return nil
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, _ := json.MarshalIndent(templates, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTAG\tSTATUS\tIMAGE\tBUILT")
		for _, tpl := range templates {
			built := ""
			if !tpl.CreatedAt.IsZero() {
				built = tpl.CreatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tpl.Name, tpl.Tag, tpl.Status, tpl.ImageRef, built)
		}
		w.Flush()

		return nil
	},
}

var getTemplateCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tmpl, err := newClient().GetTemplate(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get template: %w", err)
		}

		data, _ := json.MarshalIndent(tmpl, "", "  ")
		fmt.Println(string(data))
		return nil
	},
}

var deleteTemplateCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := newClient().DeleteTemplate(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		fmt.Printf("Deleted template %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(listTemplatesCmd)
	templatesCmd.AddCommand(getTemplateCmd)
	templatesCmd.AddCommand(deleteTemplateCmd)

	listTemplatesCmd.Flags().Bool("json", false, "Output as JSON")
}

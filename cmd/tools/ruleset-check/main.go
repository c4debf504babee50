// cmd/tools/ruleset-check/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"challenge-verifier/internal/common/logger"
	"challenge-verifier/internal/common/validation"
	"challenge-verifier/internal/verification/category"
	"challenge-verifier/internal/verification/preview"
	"challenge-verifier/internal/verification/prompts"
	"challenge-verifier/pkg/ruleset"
)

var rulesPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	previewCmd := flag.NewFlagSet("preview", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	validateCmd.StringVar(&rulesPath, "path", "configs/ruleset.json", "Path to ruleset file")

	previewCmd.StringVar(&rulesPath, "path", "", "Path to ruleset file (built-in rules when empty)")
	title := previewCmd.String("title", "", "Challenge title to preview")

	exportCmd.StringVar(&rulesPath, "path", "configs/ruleset.json", "Destination file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		rs, err := validateFile(rulesPath)
		if err != nil {
			fmt.Printf("Ruleset validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ruleset validation passed. Version %s, %d categories, %d generic prompts.\n",
			rs.Version, len(rs.Categories), len(rs.Generic))

	case "preview":
		previewCmd.Parse(os.Args[2:])
		if *title == "" {
			fmt.Println("Error: title is required for preview.")
			previewCmd.Usage()
			os.Exit(1)
		}
		rs := ruleset.Default()
		if rulesPath != "" {
			var err error
			if rs, err = validateFile(rulesPath); err != nil {
				fmt.Printf("Ruleset validation failed: %v\n", err)
				os.Exit(1)
			}
		}
		if err := previewTitle(os.Stdout, rs, *title); err != nil {
			fmt.Printf("Error previewing title: %v\n", err)
			os.Exit(1)
		}

	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := saveRuleset(ruleset.Default(), rulesPath); err != nil {
			fmt.Printf("Error exporting ruleset: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Built-in ruleset written to %s\n", rulesPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

// validateFile checks the document shape against the JSON schema, then the
// semantic rules enforced at service start.
func validateFile(path string) (*ruleset.Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}

	schema, err := validation.Compile(ruleset.JSONSchema)
	if err != nil {
		return nil, err
	}
	result, err := schema.ValidateJSON(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("schema: %s", result.Summary())
	}

	return ruleset.LoadRuleset(path)
}

// previewTitle prints the categories, the prompt groups a verification would
// score and the preview verdict.
func previewTitle(w io.Writer, rs *ruleset.Ruleset, title string) error {
	mapper := category.NewMapper(rs)
	catalog := prompts.NewCatalog(rs)

	result, err := preview.NewService(mapper, logger.NewNoOpLogger()).Preview(title)
	if err != nil {
		return err
	}

	var categoryPrompts []string
	for _, tag := range result.Categories {
		categoryPrompts = append(categoryPrompts, catalog.PromptsFor(tag)...)
	}

	out := map[string]interface{}{
		"preview":         result,
		"categoryPrompts": prompts.Dedupe(categoryPrompts),
		"genericPrompts":  catalog.GenericPrompts(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// saveRuleset handles saving the ruleset to file
func saveRuleset(rs *ruleset.Ruleset, path string) error {
	rs.LastUpdated = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ruleset: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ruleset file: %w", err)
	}
	return nil
}

func help() {
	fmt.Println(`
Usage: ruleset-check <command> [flags]

Commands:
  validate  Validate a ruleset file
  preview   Show categories and prompts for a challenge title
  export    Write the built-in ruleset to a file
  help      Show this help message

Examples:
  ruleset-check validate -path configs/ruleset.json
  ruleset-check preview -title "매일 아침 러닝 5km"
  ruleset-check export -path configs/ruleset.json

Use 'ruleset-check <command> -h' for more information about a command.
`)
}

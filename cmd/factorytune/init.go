package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"factorytune/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a project for factorytune",
	Long: `Initialize a directory for use with factorytune.

This command sets up everything needed to optimize a project:
  - Creates the .factorytune directory structure
  - Creates a .factorytune.yaml template with the common settings
  - Adds factorytune's working files to .gitignore

The directory argument is optional and defaults to the current
directory.

Examples:
  factorytune init              # Initialize current directory
  factorytune init ./myproject  # Initialize specific directory
  factorytune init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing factorytune in %s...\n\n", absPath)

	workDir := filepath.Join(absPath, ".factorytune")
	if _, err := os.Stat(workDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	// The suite command is only needed at optimize time, so a missing
	// bundler is a warning here, not an error.
	if _, err := exec.LookPath("bundle"); err != nil {
		printStatus("⚠", "bundler not found in PATH (set oracle.command to your suite runner)", color.FgYellow)
	} else {
		printStatus("✓", "bundler found", color.FgGreen)
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("creating .factorytune directory: %w", err)
	}
	logsDir := filepath.Join(workDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating .factorytune/logs directory: %w", err)
	}
	printStatus("✓", "Created .factorytune directory structure", color.FgGreen)

	created, err := createProjectConfig(absPath)
	if err != nil {
		return fmt.Errorf("creating project config: %w", err)
	}
	if created {
		printStatus("✓", "Created "+config.ProjectConfigName+" template", color.FgGreen)
	} else {
		printStatus("✓", config.ProjectConfigName+" already exists", color.FgGreen)
	}

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with factorytune entries", color.FgGreen)

	fmt.Printf("\n%s factorytune initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Review the suite command:")
	fmt.Println("     edit " + config.ProjectConfigName + " (oracle.command)")
	fmt.Println()
	fmt.Println("  2. Capture baselines (optional):")
	fmt.Println("     factorytune baseline capture spec/")
	fmt.Println()
	fmt.Println("  3. Optimize:")
	fmt.Println("     factorytune optimize spec/ --dry-run")
	fmt.Println("     factorytune optimize spec/")

	return nil
}

// createProjectConfig writes the .factorytune.yaml template. Returns
// false when the file already exists; an existing config is never
// overwritten.
func createProjectConfig(repoPath string) (bool, error) {
	configPath := filepath.Join(repoPath, config.ProjectConfigName)

	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}

	template := `# factorytune project configuration
# This file overrides defaults from ~/.config/factorytune/config.yaml

oracle:
  command: "bundle exec rspec {file}"
  # timeout: 5m
  # workdir: ""

# optimize:
#   default_granularity: integration
#   workers: 4
#   baseline_check: false

# detectors:
#   rules_file: ""

# history:
#   enabled: true

# watch:
#   settle: 500ms
#   poll: 2s
`

	if err := os.WriteFile(configPath, []byte(template), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// updateGitignore adds factorytune entries to .gitignore if not present
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	entries := []string{
		".factorytune/",
	}

	needsUpdate := false
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}

	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)

	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}

	newContent.WriteString("\n# factorytune\n")
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

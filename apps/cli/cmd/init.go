package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/apicheck/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new apicheck project",
	Long: `Initialize a new apicheck project in the current directory.

This creates:
  - .apicheck.json  - Configuration file with defaults
  - example.yaml    - Example suite against JSONPlaceholder

Examples:
  apicheck init
  apicheck init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `variables:
  baseUrl: https://jsonplaceholder.typicode.com

templates:
  list_posts:
    method: GET
    url: "{{baseUrl}}/posts"
  post:
    method: GET
    url: "{{baseUrl}}/posts/{id}"
  create_post:
    method: POST
    url: "{{baseUrl}}/posts"

schemas:
  post:
    fields:
      - {name: id, type: int}
      - {name: userId, type: int, required: true}
      - {name: title, type: str, required: true}
      - {name: body, type: str, required: true}

lookups:
  first_post:
    template: list_posts
    path: 0.id

cases:
  - id: list_posts
    template: list_posts
    status: 200
    schema: post
    tags: [smoke]

  - id: get_post
    template: post
    parametrize: [{id: 1}, {id: 100}]
    status: 200
    schema: post
    expect:
      - {field: id, equals: "{id}", description: "post {id} echoes its id"}

  - id: missing_post
    template: post
    params: {id: 101}
    status: 404

  - id: first_post
    template: post
    params: {id: "@first_post"}
    status: 200
    schema: post

  - id: create_post
    template: create_post
    status: 201
    body: {title: foo, body: bar, userId: 1}
    expect:
      - {field: title, equals: foo}
      - {header: Content-Type, contains: json}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := config.DefaultConfig().SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napicheck project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'apicheck run example.yaml' to execute the example suite.\n")
	return nil
}

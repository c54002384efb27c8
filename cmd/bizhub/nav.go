package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"bizhub-backend/pkg/models"
	"bizhub-backend/pkg/navigation"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newNavCmd(_ *app) *cobra.Command {
	var (
		appName string
		role    string
		format  string
		list    bool
	)
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Print the navigation tree an app shows to a role",
		Example: `  bizhub nav --app crm --role client
  bizhub nav --app crm --role admin --format yaml
  bizhub nav --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				_, err := fmt.Fprintln(out, strings.Join(navigation.Apps(), "\n"))
				return err
			}

			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			items, err := navigation.Resolve(appName, r)
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(items); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			default:
				return fmt.Errorf("unknown format %q (json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&appName, "app", "crm", "Application name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "Role to resolve the tree for")
	cmd.Flags().StringVarP(&format, "format", "o", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&list, "list", false, "List known applications")
	return cmd
}

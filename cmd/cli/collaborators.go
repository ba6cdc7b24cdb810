package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var collaboratorsCmd = &cobra.Command{
	Use:   "collaborators",
	Short: "Manage feed collaborators",
}

var listCollaboratorsCmd = &cobra.Command{
	Use:   "list <feed-id>",
	Short: "List the collaborators of a feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest("GET", "/api/v1/feeds/"+args[0]+"/collaborators", nil)
		if err != nil {
			return err
		}

		if output == "json" {
			fmt.Println(string(body))
			return nil
		}

		var result struct {
			Collaborators []struct {
				UserID string `json:"user_id"`
				Role   string `json:"role"`
				User   struct {
					Username string `json:"username"`
				} `json:"user"`
			} `json:"collaborators"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		for _, c := range result.Collaborators {
			fmt.Printf("%-36s  %-6s  %s\n", c.UserID, c.Role, c.User.Username)
		}
		return nil
	},
}

var addCollaboratorCmd = &cobra.Command{
	Use:   "add <feed-id> <user-id> <role>",
	Short: "Grant a user a role (read, edit or admin) on a feed",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]interface{}{
			"user_id": args[1],
			"role":    args[2],
		}
		body, err := apiRequest("POST", "/api/v1/feeds/"+args[0]+"/collaborators", payload)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Println(string(body))
		} else {
			fmt.Printf("✓ Added %s as %s\n", args[1], args[2])
		}
		return nil
	},
}

var removeCollaboratorCmd = &cobra.Command{
	Use:   "remove <feed-id> <user-id>",
	Short: "Remove a collaborator from a feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest("DELETE", "/api/v1/feeds/"+args[0]+"/collaborators/"+args[1], nil)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Println(string(body))
		} else {
			fmt.Println("✓ Collaborator removed")
		}
		return nil
	},
}

func init() {
	collaboratorsCmd.AddCommand(listCollaboratorsCmd)
	collaboratorsCmd.AddCommand(addCollaboratorCmd)
	collaboratorsCmd.AddCommand(removeCollaboratorCmd)
}

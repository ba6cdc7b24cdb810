package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	listPublic   bool
	listType     string
	listLanguage string
	listLimit    int
	listCursor   string

	createType     string
	createLanguage string
	createPublic   bool
)

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "List, inspect and create feeds",
}

var listFeedsCmd = &cobra.Command{
	Use:   "list",
	Short: "List feeds (your own by default, --public for the public listing)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFeeds()
	},
}

var getFeedCmd = &cobra.Command{
	Use:   "get <slug>",
	Short: "Fetch a single feed by slug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getFeedBySlug(args[0])
	},
}

var createFeedCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createFeed(args[0])
	},
}

var deleteFeedCmd = &cobra.Command{
	Use:   "delete <feed-id>",
	Short: "Delete a feed you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiRequest("DELETE", "/api/v1/feeds/"+args[0], nil)
		if err != nil {
			return err
		}
		if output == "json" {
			fmt.Println(string(body))
		} else {
			fmt.Println("✓ Feed deleted")
		}
		return nil
	},
}

func init() {
	listFeedsCmd.Flags().BoolVar(&listPublic, "public", false, "List public feeds instead of your own")
	listFeedsCmd.Flags().StringVar(&listType, "type", "", "Filter by feed type")
	listFeedsCmd.Flags().StringVar(&listLanguage, "language", "", "Filter by language")
	listFeedsCmd.Flags().IntVar(&listLimit, "limit", 20, "Page size")
	listFeedsCmd.Flags().StringVar(&listCursor, "cursor", "", "Continuation cursor from a previous page")

	createFeedCmd.Flags().StringVar(&createType, "type", "articles", "Feed type")
	createFeedCmd.Flags().StringVar(&createLanguage, "language", "en", "Language tag")
	createFeedCmd.Flags().BoolVar(&createPublic, "public", false, "Make the feed public")

	feedsCmd.AddCommand(listFeedsCmd)
	feedsCmd.AddCommand(getFeedCmd)
	feedsCmd.AddCommand(createFeedCmd)
	feedsCmd.AddCommand(deleteFeedCmd)
}

func listFeeds() error {
	params := url.Values{}
	if listPublic {
		params.Set("public", "true")
	}
	if listType != "" {
		params.Set("type", listType)
	}
	if listLanguage != "" {
		params.Set("language", listLanguage)
	}
	if listLimit > 0 {
		params.Set("limit", fmt.Sprintf("%d", listLimit))
	}
	if listCursor != "" {
		params.Set("cursor", listCursor)
	}

	body, err := apiRequest("GET", "/api/v1/feeds?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var result struct {
		Feeds []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Slug     string `json:"slug"`
			Type     string `json:"type"`
			IsPublic bool   `json:"is_public"`
		} `json:"feeds"`
		NextCursor *string `json:"next_cursor"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	for _, f := range result.Feeds {
		visibility := "private"
		if f.IsPublic {
			visibility = "public"
		}
		fmt.Printf("%-36s  %-8s  %-9s  %s\n", f.ID, f.Type, visibility, f.Slug)
	}
	if result.NextCursor != nil {
		fmt.Printf("\nNext page: --cursor %s\n", *result.NextCursor)
	}
	return nil
}

func getFeedBySlug(slug string) error {
	body, err := apiRequest("GET", "/api/v1/feeds?slug="+url.QueryEscape(slug), nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func createFeed(title string) error {
	payload := map[string]interface{}{
		"title":     title,
		"type":      createType,
		"language":  createLanguage,
		"is_public": createPublic,
	}

	body, err := apiRequest("POST", "/api/v1/feeds", payload)
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var feed struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("✓ Created feed %s (slug: %s)\n", feed.ID, feed.Slug)
	return nil
}

// apiRequest performs an authenticated JSON request and returns the
// raw response body, mapping non-2xx statuses to errors
func apiRequest(method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, apiURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.Unmarshal(body, &errResp)
		if msg, ok := errResp["message"].(string); ok {
			return nil, fmt.Errorf("API error: %s", msg)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	return body, nil
}

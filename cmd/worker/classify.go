package main

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ignite/aicmo-cam/internal/service/classifier"
)

func newClassifyCommand() *cobra.Command {
	var subject, body string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a reply and print the verdict as JSON",
		Long:  "Classify runs the reply classifier on --subject and --body. With --body -, the body is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = string(data)
			}
			if strings.TrimSpace(subject+body) == "" {
				return errors.New("classify: --subject or --body is required")
			}
			res := classifier.Classify(subject, body)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"category":   res.Category,
				"confidence": res.Confidence,
				"reason":     res.Reason,
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "reply subject")
	cmd.Flags().StringVar(&body, "body", "", "reply body, or - to read stdin")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"newslens/internal/bias"
	"newslens/pkg/models"
)

var (
	classifyTitle       string
	classifyDescription string
	classifyContent     string
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify text for political bias",
	Long:  `Classify the given text, or the --title/--description/--content fields, or stdin when neither is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, desc, content := classifyTitle, classifyDescription, classifyContent
		if len(args) > 0 {
			title = strings.Join(args, " ")
		}
		if title == "" && desc == "" && content == "" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			content = string(data)
		}

		r := bias.ClassifyArticle(bias.DefaultLexicon(), title, desc, content)
		if jsonOutput {
			return printJSON(cmd, classifyOutput(r))
		}

		out := cmd.OutOrStdout()
		b := r.Bias()
		fmt.Fprintf(out, "label:      %s (%s)\n", b.Label, r.Verdict)
		fmt.Fprintf(out, "score:      %.2f\n", b.Score)
		fmt.Fprintf(out, "confidence: %.2f\n", b.Confidence)
		fmt.Fprintf(out, "tallies:    left=%d right=%d neutral=%d\n", r.Scores.Left, r.Scores.Right, r.Scores.Neutral)
		fmt.Fprintf(out, "keywords:   %s\n", strings.Join(b.Keywords, ", "))
		fmt.Fprintf(out, "terms:      %s\n", strings.Join(r.Terms, ", "))
		return nil
	},
}

type classifyJSON struct {
	models.Bias
	Verdict string      `json:"verdict"`
	Scores  bias.Scores `json:"scores"`
	Terms   []string    `json:"terms"`
}

func classifyOutput(r bias.Result) classifyJSON {
	return classifyJSON{Bias: r.Bias(), Verdict: r.Verdict.String(), Scores: r.Scores, Terms: r.Terms}
}

var compareCmd = &cobra.Command{
	Use:   "compare FILE",
	Short: "Classify a JSON array of articles and compare them side by side",
	Long:  `FILE holds [{"source": ..., "title": ..., "description": ..., "content": ...}]. Use - for stdin.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var items []models.Article
		if err := json.NewDecoder(in).Decode(&items); err != nil {
			return fmt.Errorf("decode articles: %w", err)
		}

		rows := bias.Compare(bias.DefaultLexicon(), items)
		if jsonOutput {
			return printJSON(cmd, rows)
		}

		table := make([][]string, 0, len(rows))
		for _, r := range rows {
			table = append(table, []string{
				r.Source,
				string(r.Bias.Label),
				strconv.FormatFloat(r.Bias.Score, 'f', 2, 64),
				strconv.FormatFloat(r.Bias.Confidence, 'f', 2, 64),
				r.Title,
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"SOURCE", "LABEL", "SCORE", "CONF", "TITLE"}, table)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyTitle, "title", "", "article title")
	classifyCmd.Flags().StringVar(&classifyDescription, "description", "", "article description")
	classifyCmd.Flags().StringVar(&classifyContent, "content", "", "article body")
}

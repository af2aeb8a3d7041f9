package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/srs/internal/claim"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/rating"
	"github.com/spf13/cobra"
)

var (
	classifyDefault string
	classifySplit   bool
	classifyJudge   bool
	classifyJSON    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify claim text as good, mixed or bad",
	Long: `Classify applies the claim rules to each argument, or to each line of
stdin when no arguments are given, and prints the judgment.

Hedged wording ("but", "however", "some information") reads as mixed,
negative wording ("not", "no public information") as bad, and
"distinguished" as good. Text no rule matches gets --default, or the
configured LLM judge's answer with --judge.

Example:
  srs classify "Has not made a commitment"
  srs classify --split --json < claims.txt`,
	RunE: runClassify,
}

var splitCmd = &cobra.Command{
	Use:   "split [text...]",
	Short: "Split claim text into sentences",
	Long:  `Split prints one sentence per line, breaking after a period followed by whitespace and a capital letter or digit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, err := inputTexts(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		for _, text := range texts {
			for _, s := range claim.SplitIntoSentences(text) {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
		}
		return nil
	},
}

var gradeCmd = &cobra.Command{
	Use:   "grade <grade...>",
	Short: "Map letter grades to judgments",
	Long:  `Grade prints the judgment for each letter grade: A and B are good, C is mixed, D through F are bad.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, g := range args {
			j, err := rating.GradeToJudgment(g)
			if err != nil {
				return fmt.Errorf("grade %q: %w", g, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", g, j, int(j))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(gradeCmd)

	classifyCmd.Flags().StringVar(&classifyDefault, "default", "good", "judgment for text no rule matches (good, mixed, bad)")
	classifyCmd.Flags().BoolVar(&classifySplit, "split", false, "classify each sentence separately")
	classifyCmd.Flags().BoolVar(&classifyJudge, "judge", false, "ask the configured LLM judge about text no rule matches")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print one JSON object per claim")
}

func runClassify(cmd *cobra.Command, args []string) error {
	def, err := model.ParseJudgment(classifyDefault)
	if err != nil {
		return err
	}

	var judge claim.Judge
	if classifyJudge {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if judge, err = newJudge(cfg, log); err != nil {
			return err
		}
		if judge == nil {
			return fmt.Errorf("--judge needs llm.provider to be configured")
		}
	}

	texts, err := inputTexts(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if classifySplit {
		var sentences []string
		for _, text := range texts {
			sentences = append(sentences, claim.SplitIntoSentences(text)...)
		}
		texts = sentences
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for _, text := range texts {
		c, err := claim.Explain(ctx, text, def, judge)
		if err != nil {
			return err
		}
		if classifyJSON {
			if err := enc.Encode(c); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", c.Label, c.Text)
	}
	return nil
}

// inputTexts returns args, or the non-blank lines of stdin when there are none
func inputTexts(args []string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}

	var texts []string
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return texts, nil
}

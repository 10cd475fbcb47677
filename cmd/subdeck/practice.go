package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/language"
	"github.com/oukeidos/subdeck/internal/model"
	"github.com/oukeidos/subdeck/internal/practice"
	"github.com/oukeidos/subdeck/internal/search"
	"github.com/spf13/cobra"
)

func newPracticeCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Score answers against card subtitles",
	}
	cmd.PersistentFlags().StringVar(&mode, "mode", string(practice.ModeTyped), "Scoring mode: typed or spoken")

	var asJSON bool
	check := &cobra.Command{
		Use:   "check <reference> <answer>",
		Short: "Score one answer against a reference sentence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := practice.ParseMode(mode)
			if err != nil {
				return err
			}
			res := practice.Score(args[0], args[1], m)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printScore(cmd.OutOrStdout(), res)
			return nil
		},
	}
	check.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	var (
		content  []string
		mainLang string
		hintLang string
		count    int
	)
	quiz := &cobra.Command{
		Use:   "quiz",
		Short: "Type the main-language line of random cards",
		Long: `Show random cards in a hint language and score the main-language line you
type for each. Answers are read one per line from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := practice.ParseMode(mode)
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			main, err := a.mainLanguage(cmd.Context(), mainLang)
			if err != nil {
				return err
			}
			main = language.Canonical(main)
			if main == "" {
				return fmt.Errorf("unsupported main language: %s", mainLang)
			}
			client, err := a.apiClient(false)
			if err != nil {
				return err
			}
			cards, err := client.FetchCards(cmd.Context(), api.CardQuery{MainLanguage: main, ContentSlugs: splitList(content)})
			if err != nil {
				return err
			}
			return runQuiz(cmd.InOrStdin(), cmd.OutOrStdout(), pickCards(cards, main, count), main, language.Canonical(hintLang), m)
		},
	}
	quiz.Flags().StringSliceVar(&content, "content", nil, "Only cards of these content slugs")
	quiz.Flags().StringVarP(&mainLang, "main-language", "m", "", "Main language (default from prefs)")
	quiz.Flags().StringVar(&hintLang, "hint", "", "Language shown as the hint (default: any other subtitle)")
	quiz.Flags().IntVarP(&count, "count", "n", 5, "Number of cards")

	for _, c := range []*cobra.Command{check, quiz} {
		c.SetUsageTemplate(subcommandUsageTemplate)
		cmd.AddCommand(c)
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

// pickCards returns up to n random cards that have main-language text.
func pickCards(cards []model.Card, main string, n int) []model.Card {
	var usable []model.Card
	for _, c := range cards {
		if strings.TrimSpace(c.Subtitles[main]) != "" {
			usable = append(usable, c)
		}
	}
	rand.Shuffle(len(usable), func(i, j int) { usable[i], usable[j] = usable[j], usable[i] })
	if len(usable) > n {
		usable = usable[:n]
	}
	return usable
}

func runQuiz(in io.Reader, out io.Writer, cards []model.Card, main, hint string, mode practice.Mode) error {
	if len(cards) == 0 {
		return fmt.Errorf("no cards with %s text", main)
	}
	scanner := bufio.NewScanner(in)
	total := 0
	for i, c := range cards {
		fmt.Fprintf(out, "\n(%d/%d) %s ep%d\n", i+1, len(cards), c.ContentSlug, c.EpisodeNumber)
		if h := hintText(c, main, hint); h != "" {
			fmt.Fprintf(out, "Hint: %s\n", h)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			cards = cards[:i]
			break
		}
		res := practice.Score(c.Subtitles[main], scanner.Text(), mode)
		total += res.Score
		printScore(out, res)
		fmt.Fprintf(out, "Answer: %s\n", c.Subtitles[main])
	}
	if len(cards) > 0 {
		fmt.Fprintf(out, "\nAverage score: %d/100 over %d card(s)\n", total/len(cards), len(cards))
	}
	return nil
}

func hintText(c model.Card, main, hint string) string {
	if hint != "" {
		return c.Subtitles[hint]
	}
	for _, l := range cardLanguages(c, search.Query{MainLanguage: main}) {
		if l != main {
			return c.Subtitles[l]
		}
	}
	return ""
}

func printScore(w io.Writer, res practice.Result) {
	parts := make([]string, 0, len(res.Tokens))
	for _, t := range res.Tokens {
		switch t.Status {
		case practice.StatusCorrect:
			parts = append(parts, t.Text)
		case practice.StatusNear:
			parts = append(parts, fmt.Sprintf("~%s(%s)", t.Text, t.Answer))
		case practice.StatusMissing:
			parts = append(parts, "-"+t.Text)
		case practice.StatusExtra:
			parts = append(parts, "+"+t.Text)
		}
	}
	fmt.Fprintf(w, "Score: %d/100 (correct %d, near %d, missing %d, extra %d)\n", res.Score, res.Correct, res.Near, res.Missing, res.Extra)
	if len(parts) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
	}
}

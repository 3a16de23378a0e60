package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/classifier"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	classifyCorpus string
	classifyMisses bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Show the department and priority a description would get",
	Long: `Run a complaint description through the triage classifier and show
the department, the priority and which rule decided them. Nothing is stored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifyRun(strings.Join(args, " "))
	},
}

var classifyEvalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score the classifier against a labelled corpus",
	Long: `Fit the classifier on corpus_path and score it against a labelled CSV
corpus (text,label,priority). Defaults to scoring against corpus_path itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifyEvalRun(classifyCorpus)
	},
}

func init() {
	classifyEvalCmd.Flags().StringVar(&classifyCorpus, "corpus", "", "Labelled CSV corpus to score against (default: corpus_path)")
	classifyEvalCmd.Flags().BoolVar(&classifyMisses, "misses", false, "List misrouted examples")

	classifyCmd.AddCommand(classifyEvalCmd)
	rootCmd.AddCommand(classifyCmd)
}

func classifyRun(text string) error {
	c, err := getClassifier()
	if err != nil {
		return err
	}

	p := c.Explain(text)
	fmt.Fprintf(ui.Out, "  Department: %s  %s\n", output.Cyan(string(p.Department)), describeSource(p))
	fmt.Fprintf(ui.Out, "  Priority:   %s", output.PriorityColor(string(p.Priority)))
	if p.PriorityKeyword != "" {
		fmt.Fprintf(ui.Out, "  (keyword %q)", p.PriorityKeyword)
	}
	fmt.Fprintln(ui.Out)
	if !c.Available() {
		ui.VerboseLog("Model unavailable; departments come from keywords only")
	}
	return nil
}

func describeSource(p classifier.Prediction) string {
	switch p.DepartmentSource {
	case classifier.SourceKeyword:
		if p.ModelDepartment != "" && p.ModelDepartment != p.Department {
			return fmt.Sprintf("(keyword %q, model said %s)", p.DepartmentKeyword, p.ModelDepartment)
		}
		return fmt.Sprintf("(keyword %q)", p.DepartmentKeyword)
	case classifier.SourceModel:
		return "(model)"
	default:
		return "(default)"
	}
}

func classifyEvalRun(corpusPath string) error {
	if corpusPath == "" {
		corpusPath = viper.GetString("corpus_path")
	}
	examples, err := classifier.LoadCorpus(corpusPath)
	if err != nil {
		return err
	}

	c, err := getClassifier()
	if err != nil {
		return err
	}
	if !c.Available() {
		ui.Warning("Model unavailable; scoring keyword rules only")
	}

	ev := c.Evaluate(examples)
	ui.Info("Scored %d examples from %s", ev.Total, corpusPath)
	fmt.Fprintln(ui.Out)

	depts := make([]models.Department, 0, len(ev.ByDepartment))
	for d := range ev.ByDepartment {
		depts = append(depts, d)
	}
	sort.Slice(depts, func(i, j int) bool { return depts[i] < depts[j] })

	table := ui.Table([]string{"Department", "Correct", "Total", "Accuracy"})
	for _, d := range depts {
		score := ev.ByDepartment[d]
		name := string(d)
		if name == "" {
			name = "(unknown label)"
		}
		table.Append([]string{
			name,
			fmt.Sprintf("%d", score.Correct),
			fmt.Sprintf("%d", score.Total),
			percent(score.Correct, score.Total),
		})
	}
	table.Render()
	fmt.Fprintln(ui.Out)

	summary := fmt.Sprintf("Accuracy: %s (%d/%d)", percent(ev.Correct, ev.Total), ev.Correct, ev.Total)
	if ev.Correct == ev.Total {
		ui.Success("%s", summary)
	} else {
		ui.Info("%s", summary)
	}

	if classifyMisses && len(ev.Misses) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Expected", "Got", "Source", "Text"})
		for _, miss := range ev.Misses {
			table.Append([]string{miss.Expected, string(miss.Got), string(miss.Source), truncate(miss.Text, 60)})
		}
		table.Render()
	}
	return nil
}

func percent(n, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

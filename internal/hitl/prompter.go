package hitl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"ruleminer/domain/core"
	domain "ruleminer/domain/hitl"
	"ruleminer/ports"
)

// AutoPrompter answers every question with its recommended option
type AutoPrompter struct{}

var _ ports.PrompterPort = AutoPrompter{}

func (AutoPrompter) Ask(ctx context.Context, q domain.Question) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	opt, ok := q.Recommended()
	if !ok {
		return domain.Answer{}, fmt.Errorf("question %s has no options", q.ID)
	}
	return domain.Answer{
		QuestionID:        q.ID,
		SelectedOption:    opt.Key,
		Rationale:         "accepted automatically",
		AcceptedByDefault: true,
		AnsweredAt:        core.Now(),
	}, nil
}

// TerminalPrompter asks on a text stream. Options are numbered; an empty line
// picks the recommended option.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

var _ ports.PrompterPort = (*TerminalPrompter)(nil)

// NewTerminalPrompter creates a prompter reading answers from in and writing prompts to out
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *TerminalPrompter) Ask(ctx context.Context, q domain.Question) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}
	recommended, ok := q.Recommended()
	if !ok {
		return domain.Answer{}, fmt.Errorf("question %s has no options", q.ID)
	}

	start := time.Now()
	p.render(q)

	var chosen domain.Option
	byDefault := false
	for {
		fmt.Fprintf(p.out, "Choice [Enter = %s]: ", recommended.Label)
		line, eof, err := p.readLine()
		if err != nil {
			return domain.Answer{}, err
		}
		if line == "" {
			chosen, byDefault = recommended, true
			break
		}
		if opt, ok := pick(q, line); ok {
			chosen = opt
			break
		}
		if eof {
			return domain.Answer{}, fmt.Errorf("no valid choice for question %s: %w", q.ID, io.ErrUnexpectedEOF)
		}
		fmt.Fprintf(p.out, "%q is not one of the options.\n", line)
	}

	answer := domain.Answer{
		QuestionID:        q.ID,
		SelectedOption:    chosen.Key,
		AcceptedByDefault: byDefault,
	}
	if chosen.NeedsCustomVal {
		for answer.CustomValue == "" {
			fmt.Fprint(p.out, "Value: ")
			line, eof, err := p.readLine()
			if err != nil {
				return domain.Answer{}, err
			}
			answer.CustomValue = line
			if line == "" && eof {
				return domain.Answer{}, fmt.Errorf("option %s needs a value: %w", chosen.Key, io.ErrUnexpectedEOF)
			}
		}
	}
	fmt.Fprint(p.out, "Rationale (optional): ")
	rationale, _, err := p.readLine()
	if err != nil {
		return domain.Answer{}, err
	}
	answer.Rationale = rationale
	answer.DecisionTimeMs = time.Since(start).Milliseconds()
	answer.AnsweredAt = core.Now()
	return answer, nil
}

func (p *TerminalPrompter) render(q domain.Question) {
	fmt.Fprintf(p.out, "\n== %s ==\n%s\n", q.Title, q.Prompt)
	if len(q.Context) > 0 {
		keys := make([]string, 0, len(q.Context))
		for k := range q.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.out, "  %s: %s\n", k, q.Context[k])
		}
	}
	if len(q.Examples) > 0 {
		fmt.Fprintf(p.out, "  examples: %s\n", strings.Join(q.Examples, ", "))
	}
	for i, o := range q.Options {
		marker := ""
		if o.IsRecommended {
			marker = " (recommended)"
		}
		fmt.Fprintf(p.out, "  %d) %s%s", i+1, o.Label, marker)
		if o.Description != "" {
			fmt.Fprintf(p.out, " - %s", o.Description)
		}
		fmt.Fprintln(p.out)
	}
}

// readLine returns the trimmed next line; eof is set when input is exhausted
func (p *TerminalPrompter) readLine() (string, bool, error) {
	line, err := p.in.ReadString('\n')
	if err == io.EOF {
		return strings.TrimSpace(line), true, nil
	}
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(line), false, nil
}

// pick resolves a 1-based option number or an option key
func pick(q domain.Question, input string) (domain.Option, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(q.Options) {
			return q.Options[n-1], true
		}
		return domain.Option{}, false
	}
	return q.Option(input)
}

package outcome

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"

	"drg/pkg/helper"
)

type Mode int

const (
	ModeText Mode = iota
	ModeJSON
	ModeWide
)

var ErrUnknownMode = errors.New("unknown output mode")

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "text":
		return ModeText, nil
	case "json":
		return ModeJSON, nil
	case "wide":
		return ModeWide, nil
	}

	return ModeText, errors.Wrapf(ErrUnknownMode, "%q, supported: json, wide", s)
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Envelope machine readable form of a message or an error
type Envelope struct {
	Status     string      `json:"status"`
	Name       string      `json:"name,omitempty"`
	Message    string      `json:"message,omitempty"`
	HTTPStatus int         `json:"http_status,omitempty"`
	Results    []*Envelope `json:"results,omitempty"`
}

func envelopeOf(name, message string, err error) *Envelope {
	if err == nil {
		return &Envelope{Status: StatusSuccess, Name: name, Message: message}
	}

	e := FromError(err)
	return &Envelope{Status: StatusFailure, Name: name, Message: e.Error(), HTTPStatus: e.Status}
}

// Printer renders outcomes and errors
type Printer struct {
	Mode Mode
	Out  io.Writer
	Err  io.Writer
}

func NewPrinter(mode Mode) *Printer {
	return &Printer{Mode: mode, Out: os.Stdout, Err: os.Stderr}
}

func (p *Printer) Wide() bool { return p.Mode == ModeWide }

// Print renders outcome or error and returns the exit code.
// pretty renders data in text modes; nil falls back to indented json.
func Print[T any](p *Printer, o *Outcome[T], err error, pretty func(T) string) int {
	if err != nil {
		p.printError(err)
		return 1
	}

	switch {
	case o == nil:
	case o.HasData() && p.Mode != ModeJSON && pretty != nil:
		fmt.Fprintln(p.Out, pretty(o.Data))
	case o.HasData():
		if err := helper.WriteJSON(p.Out, o.Data); err != nil {
			p.printError(UnexpectedClient(err))
			return 1
		}
	case p.Mode == ModeJSON:
		fmt.Fprintln(p.Out, helper.MarshalJSON(envelopeOf("", o.Message, nil)))
	default:
		fmt.Fprintln(p.Out, o.Message)
	}

	return 0
}

// PrintAll renders results of a batch operation. It succeeds only if all entries succeeded.
func (p *Printer) PrintAll(results []*Result) int {
	var merr *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			merr = multierror.Append(merr, errors.Wrap(FromError(r.Err), r.Name))
		}
	}

	if p.Mode == ModeJSON {
		env := &Envelope{
			Status:  fx.Ternary(merr.ErrorOrNil() == nil, StatusSuccess, StatusFailure),
			Results: fx.Map(results, func(r *Result) *Envelope { return envelopeOf(r.Name, r.Message, r.Err) }),
		}
		fmt.Fprintln(p.Out, helper.MarshalJSON(env))
		return fx.Ternary(merr.ErrorOrNil() == nil, 0, 1)
	}

	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintln(p.Out, r.Message)
		}
	}

	if merr.ErrorOrNil() == nil {
		return 0
	}

	merr.ErrorFormat = func(errs []error) string {
		lines := fx.Map(errs, func(err error) string { return "Error: " + err.Error() })
		return fmt.Sprintf("%s\n%d of %d documents failed", strings.Join(lines, "\n"), len(errs), len(results))
	}
	fmt.Fprintln(p.Err, merr.Error())
	return 1
}

func (p *Printer) printError(err error) {
	if p.Mode == ModeJSON {
		fmt.Fprintln(p.Out, helper.MarshalJSON(envelopeOf("", "", err)))
		return
	}

	fmt.Fprintf(p.Err, "Error: %s\n", FromError(err).Error())
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Table renders rows as a table
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return fx.Ternary(row == table.HeaderRow, headerStyle, cellStyle)
		}).
		String()
}

// Package cron parses send-window expressions. A campaign's window cron
// marks the opening of each sending day in the campaign's timezone;
// enrollment rolls jobs past the daily cap forward to the next opening.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultWindowExpression opens the sending day at 9am.
const DefaultWindowExpression = "0 9 * * *"

type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Parse builds a window schedule from a five-field cron expression and an
// IANA timezone. Empty inputs fall back to the defaults.
func (p *Parser) Parse(expression string, timezone string) (Window, error) {
	if expression == "" {
		expression = DefaultWindowExpression
	}
	if timezone == "" {
		timezone = "UTC"
	}

	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse window cron: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	return &window{sched: sched, loc: loc}, nil
}

// Validate checks an expression without building a schedule.
func (p *Parser) Validate(expression string) error {
	_, err := p.parser.Parse(expression)
	return err
}

type Window interface {
	// Next returns the next window opening strictly after the given time.
	Next(after time.Time) time.Time
}

type window struct {
	sched cron.Schedule
	loc   *time.Location
}

func (w *window) Next(after time.Time) time.Time {
	return w.sched.Next(after.In(w.loc))
}

package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/chronicle/internal/model"
)

// Kind names a palette command.
type Kind string

const (
	KindAddTask    Kind = "add"
	KindAddGoal    Kind = "goal"
	KindAddRoutine Kind = "routine"
	KindAddNote    Kind = "note"
	KindSnooze     Kind = "snooze"
	KindRefresh    Kind = "refresh"
	KindMigrate    Kind = "migrate"
	KindQuit       Kind = "quit"
)

var errEmpty = errors.New("type a command")

// Command is a parsed palette line. Only the field matching Kind is set.
type Command struct {
	Kind     Kind
	Task     model.Task
	Goal     model.Goal
	Routine  model.Routine
	Resource model.Resource
	Snooze   time.Duration
}

var weekdays = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// Parse reads a palette line. Options are key:value words anywhere after
// the command name; every other word is part of the title.
//
//	add <title> [due:YYYY-MM-DD] [at:HH:MM]
//	goal <title> [by:YYYY-MM-DD]
//	routine <title> at:HH:MM on:mon,wed,fri
//	note <title> [tag:<tag>]... [cat:<category>]
//	snooze <duration>
//	refresh | migrate | quit
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errEmpty
	}
	c := Command{Kind: Kind(strings.ToLower(fields[0]))}

	var words []string
	opts := make(map[string][]string)
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, ":"); ok && k != "" && v != "" && isOption(k) {
			opts[k] = append(opts[k], v)
			continue
		}
		words = append(words, f)
	}
	title := strings.Join(words, " ")

	switch c.Kind {
	case KindRefresh, KindMigrate, KindQuit:
		return c, nil

	case KindSnooze:
		d, err := time.ParseDuration(title)
		if err != nil || d <= 0 {
			return Command{}, fmt.Errorf("snooze needs a duration like 30m or 2h")
		}
		c.Snooze = d
		return c, nil
	}

	if title == "" {
		return Command{}, fmt.Errorf("%s needs a title", c.Kind)
	}

	switch c.Kind {
	case KindAddTask:
		c.Task = model.Task{Title: title, DueDate: last(opts["due"]), ReminderTime: last(opts["at"])}
		if err := checkDate(c.Task.DueDate); err != nil {
			return Command{}, err
		}
		if err := checkClock(c.Task.ReminderTime); err != nil {
			return Command{}, err
		}

	case KindAddGoal:
		c.Goal = model.Goal{Title: title, TargetDate: last(opts["by"])}.Normalized()
		if err := checkDate(c.Goal.TargetDate); err != nil {
			return Command{}, err
		}

	case KindAddRoutine:
		at := last(opts["at"])
		if at == "" {
			return Command{}, fmt.Errorf("routine needs at:HH:MM")
		}
		if err := checkClock(at); err != nil {
			return Command{}, err
		}
		days, err := parseDays(last(opts["on"]))
		if err != nil {
			return Command{}, err
		}
		c.Routine = model.Routine{Title: title, Time: at, DaysOfWeek: days, IsActive: true}

	case KindAddNote:
		c.Resource = model.Resource{
			Type:     model.ResourceNote,
			Title:    title,
			Category: last(opts["cat"]),
			Tags:     opts["tag"],
		}
		if c.Resource.Tags == nil {
			c.Resource.Tags = []string{}
		}

	default:
		return Command{}, fmt.Errorf("unknown command %q", c.Kind)
	}
	return c, nil
}

func isOption(k string) bool {
	switch k {
	case "due", "at", "by", "on", "tag", "cat":
		return true
	default:
		return false
	}
}

func last(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

func checkDate(s string) error {
	if s == "" {
		return nil
	}
	if _, ok := model.ParseDate(s, time.UTC); !ok {
		return fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return nil
}

func checkClock(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time %q, use HH:MM", s)
	}
	return nil
}

// parseDays reads "mon,wed,fri", "daily", "weekdays" or digits 0-6. An
// empty value means every day.
func parseDays(s string) ([]int, error) {
	switch strings.ToLower(s) {
	case "", "daily":
		return []int{0, 1, 2, 3, 4, 5, 6}, nil
	case "weekdays":
		return []int{1, 2, 3, 4, 5}, nil
	}

	seen := make(map[int]bool)
	var days []int
	for _, part := range strings.Split(strings.ToLower(s), ",") {
		d, ok := weekdays[part]
		if !ok {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("unknown day %q", part)
			}
			d = n
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

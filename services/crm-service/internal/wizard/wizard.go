// Package wizard models the consultation booking funnel as a finite state
// machine. State is a value; Transition never mutates its input.
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

type Step int

const (
	DescribeProblem Step = iota + 1
	SelectPlan
	SelectDateTime
	AuthenticateOrRegister
	ConfirmAndSubmit
	Success
	Closed
)

var stepNames = map[Step]string{
	DescribeProblem:        "describe_problem",
	SelectPlan:             "select_plan",
	SelectDateTime:         "select_date_time",
	AuthenticateOrRegister: "authenticate_or_register",
	ConfirmAndSubmit:       "confirm_and_submit",
	Success:                "success",
	Closed:                 "closed",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) Terminal() bool { return s == Success || s == Closed }

type EventKind int

const (
	Next EventKind = iota + 1
	Back
	Authenticated
	Submitted
	Close
)

// Event is a user action. Next carries the data entered on the current step.
type Event struct {
	Kind    EventKind
	Problem string
	Plan    model.PlanType
	Date    string
	Time    string
}

type State struct {
	Step          Step
	Problem       string
	Plan          model.PlanType
	Date          string
	Time          string
	Authenticated bool
}

var (
	ErrTerminal          = errors.New("wizard already finished")
	ErrInvalidTransition = errors.New("transition not allowed from this step")
	ErrIncomplete        = errors.New("step data incomplete")
)

// Start returns the initial state. Users who are already signed in never see
// the authentication step.
func Start(authenticated bool) State {
	return State{Step: DescribeProblem, Authenticated: authenticated}
}

func Transition(s State, e Event) (State, error) {
	if s.Step.Terminal() {
		return s, ErrTerminal
	}
	switch e.Kind {
	case Close:
		s.Step = Closed
		return s, nil
	case Back:
		return back(s)
	case Next:
		return next(s, e)
	case Authenticated:
		if s.Step != AuthenticateOrRegister {
			return s, fmt.Errorf("%w: authenticated at %s", ErrInvalidTransition, s.Step)
		}
		s.Authenticated = true
		s.Step = ConfirmAndSubmit
		return s, nil
	case Submitted:
		if s.Step != ConfirmAndSubmit {
			return s, fmt.Errorf("%w: submitted at %s", ErrInvalidTransition, s.Step)
		}
		s.Step = Success
		return s, nil
	default:
		return s, fmt.Errorf("%w: unknown event %d", ErrInvalidTransition, e.Kind)
	}
}

func next(s State, e Event) (State, error) {
	switch s.Step {
	case DescribeProblem:
		problem := strings.TrimSpace(e.Problem)
		if problem == "" {
			return s, fmt.Errorf("%w: problem description required", ErrIncomplete)
		}
		s.Problem = problem
		s.Step = SelectPlan
	case SelectPlan:
		plan, ok := model.ParsePlanType(string(e.Plan))
		if !ok {
			return s, fmt.Errorf("%w: unknown plan %q", ErrIncomplete, e.Plan)
		}
		s.Plan = plan
		if plan.Scheduled() {
			s.Step = SelectDateTime
		} else {
			s.Date, s.Time = "", ""
			s.Step = afterSchedule(s)
		}
	case SelectDateTime:
		if strings.TrimSpace(e.Date) == "" || strings.TrimSpace(e.Time) == "" {
			return s, fmt.Errorf("%w: date and time required", ErrIncomplete)
		}
		s.Date, s.Time = strings.TrimSpace(e.Date), strings.TrimSpace(e.Time)
		s.Step = afterSchedule(s)
	default:
		return s, fmt.Errorf("%w: next at %s", ErrInvalidTransition, s.Step)
	}
	return s, nil
}

func afterSchedule(s State) Step {
	if s.Authenticated {
		return ConfirmAndSubmit
	}
	return AuthenticateOrRegister
}

func back(s State) (State, error) {
	switch s.Step {
	case SelectPlan:
		s.Step = DescribeProblem
	case SelectDateTime:
		s.Step = SelectPlan
	case AuthenticateOrRegister:
		s.Step = beforeAuth(s)
	case ConfirmAndSubmit:
		if s.Authenticated {
			s.Step = beforeAuth(s)
		} else {
			s.Step = AuthenticateOrRegister
		}
	default:
		return s, fmt.Errorf("%w: back at %s", ErrInvalidTransition, s.Step)
	}
	return s, nil
}

func beforeAuth(s State) Step {
	if s.Plan.Scheduled() {
		return SelectDateTime
	}
	return SelectPlan
}

// Path lists the steps a user walks for a plan, for progress indicators.
func Path(plan model.PlanType, authenticated bool) []Step {
	steps := []Step{DescribeProblem, SelectPlan}
	if plan.Scheduled() {
		steps = append(steps, SelectDateTime)
	}
	if !authenticated {
		steps = append(steps, AuthenticateOrRegister)
	}
	return append(steps, ConfirmAndSubmit, Success)
}

// Submission is what the funnel posts on ConfirmAndSubmit.
type Submission struct {
	Problem string
	Plan    model.PlanType
	Date    string
	Time    string
}

// Replay walks a signed-in submission through the machine and returns the
// ConfirmAndSubmit state, or the first transition error.
func Replay(sub Submission) (State, error) {
	s := Start(true)
	events := []Event{
		{Kind: Next, Problem: sub.Problem},
		{Kind: Next, Plan: sub.Plan},
	}
	if sub.Plan.Scheduled() {
		events = append(events, Event{Kind: Next, Date: sub.Date, Time: sub.Time})
	}
	for _, e := range events {
		var err error
		if s, err = Transition(s, e); err != nil {
			return s, err
		}
	}
	if s.Step != ConfirmAndSubmit {
		return s, fmt.Errorf("%w: replay ended at %s", ErrIncomplete, s.Step)
	}
	return s, nil
}

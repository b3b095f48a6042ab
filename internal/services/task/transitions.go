package task

// transitions is the full status graph. A status never transitions to
// itself, and nothing leads out of a terminal state except reopening.
var transitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusInReview, StatusBlocked, StatusCompleted, StatusTodo},
	StatusInReview:   {StatusCompleted, StatusInProgress, StatusTodo},
	StatusBlocked:    {StatusTodo, StatusInProgress},
	StatusCompleted:  {StatusInReview, StatusTodo},
	StatusCancelled:  {StatusTodo},
}

// CanTransition reports whether a task may move from one status to another
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from the given one
func AllowedTransitions(from Status) []Status {
	return transitions[from]
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ValidType(t Type) bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature, TypeEpic:
		return true
	}
	return false
}

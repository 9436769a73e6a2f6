package query

import (
	"fmt"

	"github.com/kestrelworks/steptrace/internal/belief"
)

// #region render

// Render produces the template response for a recognized intent from the
// current belief. It is pure and total: every known type yields a non-empty
// string for any valid record. Callers must not invoke it without a record;
// that path always routes to fallback instead.
func Render(qtype Type, rec belief.Record) string {
	switch qtype {
	case TypeCurrentStep:
		return fmt.Sprintf("You are on step %d of %q%s.", rec.StepIndex, rec.TaskID, titleClause(rec))
	case TypeNextStep:
		return fmt.Sprintf("You are currently on step %d of %q%s. The next step is step %d.",
			rec.StepIndex, rec.TaskID, titleClause(rec), rec.StepIndex+1)
	case TypeRequiredTools:
		return fmt.Sprintf("Check what step %d of %q calls for%s.",
			rec.StepIndex, rec.TaskID, titleClause(rec))
	case TypeCompletionStatus:
		return fmt.Sprintf("The last step I saw you on is step %d of %q%s; I have not seen it completed yet.",
			rec.StepIndex, rec.TaskID, titleClause(rec))
	case TypeProgressOverview:
		return fmt.Sprintf("You are working through %q and have reached step %d%s (match confidence %s, %.0f%%).",
			rec.TaskID, rec.StepIndex, titleClause(rec), rec.Level, rec.Similarity*100)
	case TypeHelp:
		return fmt.Sprintf("You are on step %d of %q%s. Take it slowly, or ask me what comes next.",
			rec.StepIndex, rec.TaskID, titleClause(rec))
	default:
		// Unknown intents route to fallback before rendering; this keeps
		// Render total anyway.
		return fmt.Sprintf("I am tracking %q at step %d.", rec.TaskID, rec.StepIndex)
	}
}

func titleClause(rec belief.Record) string {
	if rec.Title == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", rec.Title)
}

// #endregion render

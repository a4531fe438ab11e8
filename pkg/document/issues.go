package document

import (
	"errors"
	"fmt"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Issues flattens an import error into one issue per failure. Errors that
// are not validation errors become a single issue with no path.
func Issues(err error) []domain.Issue {
	if err == nil {
		return nil
	}
	errs := schema.ValidationErrors(err)
	if errs == nil {
		errs = []error{err}
	}
	issues := make([]domain.Issue, 0, len(errs))
	for _, e := range errs {
		issue := domain.Issue{Severity: domain.SeverityError, Message: e.Error()}
		var ve *schema.ValidationError
		if errors.As(e, &ve) {
			issue.Path = ve.Key
			issue.Message = ve.Reason
			if v, ok := ve.Value.(string); ok {
				issue.Message += fmt.Sprintf(" %q", v)
			}
			if ve.Err != nil && ve.Err.Error() != ve.Reason {
				issue.Message += ": " + ve.Err.Error()
			}
			issue.Hint = ve.Hint
		}
		issues = append(issues, issue)
	}
	return issues
}

package service

import (
	"context"
	"fmt"
	"time"

	"interestbatch/models"
)

// selectAccounts resolves the accounts an execution will process, ordered by account id.
// Explicit account IDs bypass the configured account types and the posting schedule.
func selectAccounts(ctx context.Context, repo AccountRepository, cfg *models.JobConfig, params map[string]any, referenceDate time.Time) ([]*models.Account, error) {
	ids, err := accountIDsFromParameters(params)
	if err != nil {
		return nil, err
	}

	var accounts []*models.Account
	switch {
	case len(ids) > 0:
		accounts, err = repo.GetActiveByIDs(ctx, ids)
	case cfg.JobType.IsPosting():
		accounts, err = repo.GetDueForPosting(ctx, cfg.AccountTypes, referenceDate)
	default:
		accounts, err = repo.GetActiveByTypes(ctx, cfg.AccountTypes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}

	return accounts, nil
}

// referenceDateFromParameters returns the referenceDate parameter, or today when absent
func referenceDateFromParameters(params map[string]any, now time.Time) (time.Time, error) {
	raw, ok := params[ParamReferenceDate]
	if !ok {
		return StartOfDay(now), nil
	}

	value, ok := raw.(string)
	if !ok {
		return time.Time{}, NewValidationError(ParamReferenceDate, "must be a YYYY-MM-DD string")
	}

	return ParseReferenceDate(value)
}

// accountIDsFromParameters reads the accountIds parameter. It accepts the typed slice
// set on trigger as well as the generic slice produced by a JSON round trip.
func accountIDsFromParameters(params map[string]any) ([]string, error) {
	raw, ok := params[ParamAccountIDs]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, NewValidationError(ParamAccountIDs, "must be a list of strings")
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		return nil, NewValidationError(ParamAccountIDs, "must be a list of strings")
	}
}

package ingest

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// DetectOptions tunes which rules run besides duplicate-email grouping.
type DetectOptions struct {
	// RequiredFields are canonical fields, other than email, whose absence
	// raises MISSING_REQUIRED_FIELD. Email is always required.
	RequiredFields []Field
	// CheckEmailSyntax flags addresses that do not parse.
	CheckEmailSyntax bool
	// ExistingEmails holds normalized emails already promoted to contacts.
	ExistingEmails map[string]bool
}

// Finding is a detected condition before it is persisted as an Issue.
type Finding struct {
	Type        model.IssueType
	Description string
	StagingIDs  []string
	Key         string
}

// Issue builds the unresolved Issue for the finding.
func (f Finding) Issue(jobID string) model.Issue {
	return model.Issue{
		JobID:       jobID,
		Type:        f.Type,
		Description: f.Description,
		Key:         f.Key,
	}
}

// DetectIssues scans the full staging set of a job. It is a pure function of
// records: running it twice over the same set yields the same keys.
func DetectIssues(jobID string, records []model.StagingRecord, opts DetectOptions) []Finding {
	var (
		findings []Finding
		groups   = make(map[string][]model.StagingRecord)
		emails   []string
	)
	add := func(typ model.IssueType, desc string, recs ...model.StagingRecord) {
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		sort.Strings(ids)
		findings = append(findings, Finding{
			Type:        typ,
			Description: desc,
			StagingIDs:  ids,
			Key:         IssueKey(jobID, typ, ids),
		})
	}

	for _, rec := range records {
		if rec.Status == model.StagingDiscard {
			continue
		}
		if rec.Email == "" {
			add(model.IssueMissingField, fmt.Sprintf("Row %d is missing required field: email", rec.RowNumber), rec)
			continue
		}
		if missing := missingFields(rec, opts.RequiredFields); len(missing) > 0 {
			add(model.IssueMissingField, fmt.Sprintf("Row %d is missing required field: %s", rec.RowNumber, strings.Join(missing, ", ")), rec)
		}
		if opts.CheckEmailSyntax && !validEmail(rec.Email) {
			add(model.IssueInvalidEmail, fmt.Sprintf("Row %d has an invalid email address: %s", rec.RowNumber, rec.Email), rec)
		}
		if opts.ExistingEmails[rec.Email] {
			add(model.IssueExistingEmail, fmt.Sprintf("Email %s already exists in contacts", rec.Email), rec)
		}
		if _, ok := groups[rec.Email]; !ok {
			emails = append(emails, rec.Email)
		}
		groups[rec.Email] = append(groups[rec.Email], rec)
	}

	sort.Strings(emails)
	for _, email := range emails {
		group := groups[email]
		if len(group) < 2 || !conflicting(group) {
			continue
		}
		add(model.IssueDuplicateEmail,
			fmt.Sprintf("Email %s appears in %d rows with different contact details", email, len(group)),
			group...)
	}
	return findings
}

// conflicting reports whether identity fields differ across the group.
func conflicting(group []model.StagingRecord) bool {
	first := group[0]
	for _, r := range group[1:] {
		if r.FirstName != first.FirstName || r.LastName != first.LastName || r.Company != first.Company {
			return true
		}
	}
	return false
}

func missingFields(rec model.StagingRecord, required []Field) []string {
	var out []string
	for _, f := range required {
		var v string
		switch f {
		case FieldFirstName:
			v = rec.FirstName
		case FieldLastName:
			v = rec.LastName
		case FieldCompany:
			v = rec.Company
		default:
			continue
		}
		if v == "" {
			out = append(out, string(f))
		}
	}
	return out
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

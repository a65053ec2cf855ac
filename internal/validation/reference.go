package validation

import (
	"strings"

	"labcore/pkg/domain"
)

// CheckRequest records the problems for a missing user or request. It reports
// whether the orchestrator may continue.
func CheckRequest(hasUser, hasRequest bool, p *domain.Problems) bool {
	if !hasUser {
		p.Add("No user supplied.")
	}
	if !hasRequest {
		p.Add("No request supplied.")
	}
	return hasUser && hasRequest
}

// LoadUser resolves the acting user by username.
func LoadUser(view domain.TransactionView, username string, p *domain.Problems) (domain.User, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		p.Add("No user supplied.")
		return domain.User{}, false
	}
	u, ok := view.FindUser(username)
	if !ok {
		p.Addf("Unknown user: %s.", username)
	}
	return u, ok
}

// LoadOperationType resolves an operation type by name.
func LoadOperationType(view domain.TransactionView, name string, p *domain.Problems) (domain.OperationType, bool) {
	ot, ok := view.FindOperationType(name)
	if !ok {
		p.Addf("Unknown operation type: %s.", name)
	}
	return ot, ok
}

// LoadWork resolves a work number and requires the work to be active.
func LoadWork(view domain.TransactionView, workNumber string, p *domain.Problems) (domain.Work, bool) {
	workNumber = strings.TrimSpace(workNumber)
	if workNumber == "" {
		p.Add("No work number given.")
		return domain.Work{}, false
	}
	w, ok := view.FindWork(workNumber)
	if !ok {
		p.Addf("Unknown work number: %s.", workNumber)
		return domain.Work{}, false
	}
	if !w.Usable() {
		p.Addf("Work %s cannot be used because it is %s.", w.WorkNumber, w.Status)
		return w, false
	}
	return w, true
}

// LoadComment resolves one enabled comment.
func LoadComment(view domain.TransactionView, id int, p *domain.Problems) (domain.Comment, bool) {
	comments, ok := LoadComments(view, []int{id}, p)
	if !ok {
		return domain.Comment{}, false
	}
	return comments[0], true
}

// LoadComments resolves comment ids in order. Unknown ids are reported in one
// problem and disabled comments in another.
func LoadComments(view domain.TransactionView, ids []int, p *domain.Problems) ([]domain.Comment, bool) {
	var (
		found    []domain.Comment
		unknown  []int
		disabled []string
	)
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, ok := view.FindComment(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		if !c.Enabled {
			disabled = append(disabled, c.Text)
		}
		found = append(found, c)
	}
	if len(unknown) > 0 {
		p.Addf("Unknown comment %s: %s.", domain.Pluralise(len(unknown), "id", "ids"), domain.DescribeList(unknown))
	}
	if len(disabled) > 0 {
		p.Addf("%s not enabled: %s.", domain.Pluralise(len(disabled), "Comment", "Comments"), domain.DescribeList(disabled))
	}
	return found, len(unknown) == 0 && len(disabled) == 0
}

// LoadEquipment resolves optional equipment; a nil id is valid and yields nil.
func LoadEquipment(view domain.TransactionView, id *int, p *domain.Problems) (*domain.Equipment, bool) {
	if id == nil {
		return nil, true
	}
	e, ok := view.FindEquipment(*id)
	if !ok {
		p.Addf("Unknown equipment id: %d.", *id)
		return nil, false
	}
	if !e.Enabled {
		p.Addf("Equipment is disabled: %s.", e.Name)
		return &e, false
	}
	return &e, true
}

// LoadSingleLabware resolves one barcode through a LabwareValidator so the
// problem wording matches multi-labware requests.
func LoadSingleLabware(view domain.TransactionView, barcode string, p *domain.Problems) (domain.Labware, bool) {
	if strings.TrimSpace(barcode) == "" {
		p.Add("No barcode specified.")
		return domain.Labware{}, false
	}
	v := NewLabwareValidator()
	loaded := v.Load(view, []string{barcode})
	v.MergeInto(p)
	if len(loaded) == 0 {
		return domain.Labware{}, false
	}
	return loaded[0], true
}

package domain

import (
	"regexp"
	"strings"

	goa "goa.design/goa/v3/pkg"
)

// QueryMethod selects how the submitter wants to be answered
type QueryMethod string

const (
	QueryMethodEmail   QueryMethod = "email"
	QueryMethodPhone   QueryMethod = "phone"
	QueryMethodMeeting QueryMethod = "meeting"
)

// Field names as they appear on the form and in error maps
const (
	FieldFirstName    = "firstName"
	FieldLastName     = "lastName"
	FieldQueryMethod  = "queryMethod"
	FieldEmailAddress = "emailAddress"
	FieldQuery        = "query"
	FieldPhone        = "phone"
)

// Validation messages shown next to the offending field
const (
	MsgFirstNameRequired    = "First name is required"
	MsgLastNameRequired     = "Last name is required"
	MsgQueryMethodRequired  = "Query method is required"
	MsgQueryMethodInvalid   = "Invalid query method"
	MsgEmailAddressRequired = "Email address is required when query method is Email"
	MsgEmailAddressInvalid  = "Invalid email address"
	MsgPhoneRequired        = "Phone number is required when query method is Phone"
	MsgQueryRequired        = "Query details are required for the selected method"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// MethodOption is a selectable query method with its display label
type MethodOption struct {
	Value QueryMethod `json:"value"`
	Label string      `json:"label"`
}

// QueryMethods lists the methods in the order the form offers them
func QueryMethods() []MethodOption {
	return []MethodOption{
		{Value: QueryMethodEmail, Label: "Email"},
		{Value: QueryMethodPhone, Label: "Phone"},
		{Value: QueryMethodMeeting, Label: "Meeting"},
	}
}

// ParseQueryMethod reports whether s names one of the known methods
func ParseQueryMethod(s string) (QueryMethod, bool) {
	switch m := QueryMethod(strings.TrimSpace(s)); m {
	case QueryMethodEmail, QueryMethodPhone, QueryMethodMeeting:
		return m, true
	default:
		return "", false
	}
}

// QueryIntake is the raw form record as the visitor typed it
type QueryIntake struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	QueryMethod  string `json:"queryMethod"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Query        string `json:"query,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// Validate checks every rule that applies to the record and returns all
// failures in form order. A nil result means the record can be submitted.
func (q QueryIntake) Validate() ValidationErrors {
	var errs ValidationErrors

	if isBlank(q.FirstName) {
		errs = errs.add(FieldFirstName, MsgFirstNameRequired)
	}
	if isBlank(q.LastName) {
		errs = errs.add(FieldLastName, MsgLastNameRequired)
	}

	method, known := ParseQueryMethod(q.QueryMethod)
	switch {
	case isBlank(q.QueryMethod):
		errs = errs.add(FieldQueryMethod, MsgQueryMethodRequired)
	case !known:
		errs = errs.add(FieldQueryMethod, MsgQueryMethodInvalid)
	}

	for _, rule := range methodRules[method] {
		if fe, failed := rule(q); failed {
			errs = append(errs, fe)
		}
	}

	return errs
}

// Resolve validates the record and narrows it to the variant for its method.
// The returned error is always a ValidationErrors.
func (q QueryIntake) Resolve() (Request, error) {
	if errs := q.Validate(); len(errs) > 0 {
		return nil, errs
	}

	contact := Contact{
		FirstName: strings.TrimSpace(q.FirstName),
		LastName:  strings.TrimSpace(q.LastName),
	}
	method, _ := ParseQueryMethod(q.QueryMethod)
	switch method {
	case QueryMethodEmail:
		return EmailRequest{
			Contact:      contact,
			EmailAddress: strings.ToLower(strings.TrimSpace(q.EmailAddress)),
			Query:        strings.TrimSpace(q.Query),
		}, nil
	case QueryMethodPhone:
		return PhoneRequest{
			Contact: contact,
			Phone:   strings.TrimSpace(q.Phone),
			Query:   strings.TrimSpace(q.Query),
		}, nil
	default:
		return MeetingRequest{Contact: contact}, nil
	}
}

type fieldRule func(QueryIntake) (FieldError, bool)

// methodRules holds the extra rules each method adds on top of the base fields.
// Meeting adds none.
var methodRules = map[QueryMethod][]fieldRule{
	QueryMethodEmail: {requireEmailAddress, requireQuery},
	QueryMethodPhone: {requirePhone, requireQuery},
}

func requireEmailAddress(q QueryIntake) (FieldError, bool) {
	if isBlank(q.EmailAddress) {
		return FieldError{Field: FieldEmailAddress, Message: MsgEmailAddressRequired}, true
	}
	if !IsEmailAddress(q.EmailAddress) {
		return FieldError{Field: FieldEmailAddress, Message: MsgEmailAddressInvalid}, true
	}
	return FieldError{}, false
}

func requirePhone(q QueryIntake) (FieldError, bool) {
	if isBlank(q.Phone) {
		return FieldError{Field: FieldPhone, Message: MsgPhoneRequired}, true
	}
	return FieldError{}, false
}

func requireQuery(q QueryIntake) (FieldError, bool) {
	if isBlank(q.Query) {
		return FieldError{Field: FieldQuery, Message: MsgQueryRequired}, true
	}
	return FieldError{}, false
}

// IsEmailAddress reports whether s is a bare mailbox address such as
// jane@example.com. Display-name forms are rejected.
func IsEmailAddress(s string) bool {
	s = strings.TrimSpace(s)
	if err := goa.ValidateFormat(FieldEmailAddress, s, goa.FormatEmail); err != nil {
		return false
	}
	return emailPattern.MatchString(s)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

package domain

// Contact holds the fields every query carries
type Contact struct {
	FirstName string
	LastName  string
}

// FullName joins first and last name
func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Request is a validated query narrowed to its method. The set of
// implementations is closed: EmailRequest, PhoneRequest and MeetingRequest.
type Request interface {
	Method() QueryMethod
	Person() Contact
	isRequest()
}

// EmailRequest is answered by email
type EmailRequest struct {
	Contact
	EmailAddress string
	Query        string
}

// PhoneRequest is answered by a call back
type PhoneRequest struct {
	Contact
	Phone string
	Query string
}

// MeetingRequest asks for a meeting; details are gathered in person
type MeetingRequest struct {
	Contact
}

func (EmailRequest) Method() QueryMethod   { return QueryMethodEmail }
func (PhoneRequest) Method() QueryMethod   { return QueryMethodPhone }
func (MeetingRequest) Method() QueryMethod { return QueryMethodMeeting }

func (r EmailRequest) Person() Contact   { return r.Contact }
func (r PhoneRequest) Person() Contact   { return r.Contact }
func (r MeetingRequest) Person() Contact { return r.Contact }

func (EmailRequest) isRequest()   {}
func (PhoneRequest) isRequest()   {}
func (MeetingRequest) isRequest() {}

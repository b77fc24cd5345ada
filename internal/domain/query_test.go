package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEmailIntake() QueryIntake {
	return QueryIntake{
		FirstName:    "Jane",
		LastName:     "Doe",
		QueryMethod:  "email",
		EmailAddress: "jane@example.com",
		Query:        "Can I claim working-from-home expenses?",
	}
}

func TestValidate_BaseFieldsAlwaysChecked(t *testing.T) {
	methods := []string{"email", "phone", "meeting", "", "fax"}
	for _, m := range methods {
		t.Run("method="+m, func(t *testing.T) {
			errs := QueryIntake{FirstName: "  ", LastName: "", QueryMethod: m}.Validate()
			fields := errs.Fields()
			assert.Equal(t, MsgFirstNameRequired, fields[FieldFirstName])
			assert.Equal(t, MsgLastNameRequired, fields[FieldLastName])
		})
	}
}

func TestValidate_QueryMethod(t *testing.T) {
	errs := QueryIntake{FirstName: "Jane", LastName: "Doe"}.Validate()
	assert.Equal(t, ValidationErrors{{Field: FieldQueryMethod, Message: MsgQueryMethodRequired}}, errs)

	errs = QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "   "}.Validate()
	assert.Equal(t, ValidationErrors{{Field: FieldQueryMethod, Message: MsgQueryMethodRequired}}, errs)

	errs = QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "carrier-pigeon"}.Validate()
	assert.Equal(t, ValidationErrors{{Field: FieldQueryMethod, Message: MsgQueryMethodInvalid}}, errs)
}

func TestValidate_Email(t *testing.T) {
	assert.Empty(t, validEmailIntake().Validate())

	t.Run("missing address", func(t *testing.T) {
		in := validEmailIntake()
		in.EmailAddress = " \t"
		assert.Equal(t, ValidationErrors{{Field: FieldEmailAddress, Message: MsgEmailAddressRequired}}, in.Validate())
	})

	t.Run("malformed address", func(t *testing.T) {
		for _, addr := range []string{"not-an-email", "jane@", "@example.com", "Jane <jane@example.com>", "jane@example"} {
			in := validEmailIntake()
			in.EmailAddress = addr
			assert.Equal(t, ValidationErrors{{Field: FieldEmailAddress, Message: MsgEmailAddressInvalid}}, in.Validate(), addr)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		in := validEmailIntake()
		in.Query = ""
		assert.Equal(t, ValidationErrors{{Field: FieldQuery, Message: MsgQueryRequired}}, in.Validate())
	})

	t.Run("phone is ignored", func(t *testing.T) {
		in := validEmailIntake()
		in.Phone = "not a phone number"
		assert.Empty(t, in.Validate())

		req, err := in.Resolve()
		require.NoError(t, err)
		assert.IsType(t, EmailRequest{}, req)
	})
}

func TestValidate_Phone(t *testing.T) {
	in := QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "phone", Phone: "+44 20 7946 0958", Query: "VAT registration"}
	assert.Empty(t, in.Validate())

	in.Phone = "  "
	assert.Equal(t, ValidationErrors{{Field: FieldPhone, Message: MsgPhoneRequired}}, in.Validate())

	in.Query = ""
	assert.Equal(t, ValidationErrors{
		{Field: FieldPhone, Message: MsgPhoneRequired},
		{Field: FieldQuery, Message: MsgQueryRequired},
	}, in.Validate())
}

func TestValidate_MeetingNeedsOnlyBaseFields(t *testing.T) {
	in := QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "meeting"}
	assert.Empty(t, in.Validate())

	in.EmailAddress = "not-an-email"
	assert.Empty(t, in.Validate(), "fields of other methods are not checked")
}

func TestValidate_ReportsEveryFailureInOrder(t *testing.T) {
	errs := QueryIntake{QueryMethod: "email", EmailAddress: "nope"}.Validate()
	assert.Equal(t, ValidationErrors{
		{Field: FieldFirstName, Message: MsgFirstNameRequired},
		{Field: FieldLastName, Message: MsgLastNameRequired},
		{Field: FieldEmailAddress, Message: MsgEmailAddressInvalid},
		{Field: FieldQuery, Message: MsgQueryRequired},
	}, errs)
	assert.True(t, errs.Has(FieldQuery))
	assert.False(t, errs.Has(FieldPhone))
	assert.Contains(t, errs.Error(), "emailAddress: Invalid email address")
}

func TestValidate_Idempotent(t *testing.T) {
	in := QueryIntake{FirstName: "Jane", QueryMethod: "phone"}
	assert.Equal(t, in.Validate(), in.Validate())
}

func TestResolve(t *testing.T) {
	t.Run("email", func(t *testing.T) {
		in := validEmailIntake()
		in.FirstName = "  Jane "
		in.EmailAddress = " Jane@Example.com "
		in.Phone = "0123"

		req, err := in.Resolve()
		require.NoError(t, err)
		assert.Equal(t, EmailRequest{
			Contact:      Contact{FirstName: "Jane", LastName: "Doe"},
			EmailAddress: "jane@example.com",
			Query:        "Can I claim working-from-home expenses?",
		}, req)
		assert.Equal(t, QueryMethodEmail, req.Method())
	})

	t.Run("phone", func(t *testing.T) {
		req, err := QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: " phone ", Phone: " 07700 900123 ", Query: "CGT"}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, PhoneRequest{Contact: Contact{"Jane", "Doe"}, Phone: "07700 900123", Query: "CGT"}, req)
	})

	t.Run("meeting", func(t *testing.T) {
		req, err := QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "meeting", Query: "ignored"}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, MeetingRequest{Contact: Contact{"Jane", "Doe"}}, req)
		assert.Equal(t, "Jane Doe", req.Person().FullName())
	})

	t.Run("invalid", func(t *testing.T) {
		req, err := QueryIntake{FirstName: "Jane", LastName: "Doe", QueryMethod: "email"}.Resolve()
		assert.Nil(t, req)
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, MsgEmailAddressRequired, verrs.Fields()[FieldEmailAddress])
	})
}

func TestQueryMethods(t *testing.T) {
	opts := QueryMethods()
	require.Len(t, opts, 3)
	assert.Equal(t, MethodOption{Value: QueryMethodEmail, Label: "Email"}, opts[0])
	assert.Equal(t, MethodOption{Value: QueryMethodMeeting, Label: "Meeting"}, opts[2])

	m, ok := ParseQueryMethod("Email")
	assert.False(t, ok, "method values are case sensitive")
	assert.Empty(t, m)
}

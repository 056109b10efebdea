package model

// Names of the HTML form fields and query parameters understood by the contacts web service.
// External clients (such as cmd/client) use these to drive the service the same way a browser
// does.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldPhoneNumber = "phone_number"
	FieldEmail       = "email"

	ParamPage  = "page"
	ParamQuery = "q"

	// Parameters of the live validation endpoint.
	ParamField     = "field"
	ParamValue     = "value"
	ParamExcludeID = "id"
)

// Values of the 'field' parameter of the live validation endpoint.
const (
	ValidateEmail = "email"
	ValidatePhone = "phone"
)

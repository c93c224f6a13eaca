package schema

// hr.go declares the HR master-data entity types the engine imports.
// Declaration order matters: it is the stable tie-break for dependency
// planning, so leaf entities come first.

func init() {
	Register(EntityType{
		Name:      "department",
		Label:     "Departments",
		KeyField:  "code",
		NameField: "name",
		Fields: []FieldDef{
			{Name: "code", Type: FieldString, Aliases: []string{"department code", "dept code", "dept id"}, Signature: true},
			{Name: "name", Type: FieldString, Required: true, Aliases: []string{"department", "department name", "dept name"}},
			{Name: "description", Type: FieldString, Aliases: []string{"details", "notes"}},
			{Name: "cost_center", Type: FieldString, Aliases: []string{"cost centre", "cc"}},
		},
	})

	Register(EntityType{
		Name:      "location",
		Label:     "Locations",
		KeyField:  "code",
		NameField: "name",
		Fields: []FieldDef{
			{Name: "code", Type: FieldString, Aliases: []string{"location code", "site code"}},
			{Name: "name", Type: FieldString, Required: true, Aliases: []string{"location", "location name", "site", "office"}},
			{Name: "city", Type: FieldString, Aliases: []string{"town"}, Signature: true},
			{Name: "country", Type: FieldString},
			{Name: "address", Type: FieldString, Aliases: []string{"street address", "address line"}},
		},
	})

	Register(EntityType{
		Name:      "salary_grade",
		Label:     "Salary Grades",
		KeyField:  "code",
		NameField: "name",
		Fields: []FieldDef{
			{Name: "code", Type: FieldString, Aliases: []string{"grade code", "grade"}},
			{Name: "name", Type: FieldString, Required: true, Aliases: []string{"grade name", "band", "salary band"}},
			{Name: "minimum_salary", Type: FieldDecimal, Aliases: []string{"min salary", "salary min", "min"}, Signature: true},
			{Name: "maximum_salary", Type: FieldDecimal, Aliases: []string{"max salary", "salary max", "max"}, Signature: true},
			{Name: "currency", Type: FieldString, Aliases: []string{"currency code"}},
		},
	})

	Register(EntityType{
		Name:      "position",
		Label:     "Positions",
		KeyField:  "code",
		NameField: "title",
		DependsOn: []string{"department", "salary_grade"},
		Fields: []FieldDef{
			{Name: "code", Type: FieldString, Aliases: []string{"position code", "job code"}},
			{Name: "title", Type: FieldString, Required: true, Aliases: []string{"position", "position title", "job title", "role"}, Signature: true},
			{Name: "department", Type: FieldReference, References: "department", Aliases: []string{"dept", "department name"}},
			{Name: "salary_grade", Type: FieldReference, References: "salary_grade", Aliases: []string{"grade", "band"}},
			{Name: "headcount", Type: FieldInteger, Aliases: []string{"approved headcount", "slots"}},
		},
	})

	Register(EntityType{
		Name:      "employee",
		Label:     "Employees",
		KeyField:  "employee_number",
		NameField: "last_name",
		DependsOn: []string{"department", "position", "location"},
		Fields: []FieldDef{
			{Name: "employee_number", Type: FieldString, Required: true, Aliases: []string{"staff id", "employee id", "emp no", "emp id", "staff number", "personnel number"}, Signature: true},
			{Name: "first_name", Type: FieldString, Required: true, Aliases: []string{"given name", "forename"}},
			{Name: "last_name", Type: FieldString, Required: true, Aliases: []string{"surname", "family name"}},
			{Name: "email", Type: FieldEmail, Aliases: []string{"email address", "work email"}},
			{Name: "phone", Type: FieldString, Aliases: []string{"phone number", "mobile", "telephone"}},
			{Name: "hire_date", Type: FieldDate, Aliases: []string{"date hired", "start date", "date of employment", "joined"}, Signature: true},
			{Name: "date_of_birth", Type: FieldDate, Aliases: []string{"dob", "birth date", "birthday"}},
			{Name: "gender", Type: FieldString, Aliases: []string{"sex"}},
			{Name: "department", Type: FieldReference, References: "department", Aliases: []string{"dept", "department name"}},
			{Name: "position", Type: FieldReference, References: "position", Aliases: []string{"job title", "title", "role"}},
			{Name: "location", Type: FieldReference, References: "location", Aliases: []string{"site", "office", "work location"}},
			{Name: "active", Type: FieldBool, Aliases: []string{"is active", "status"}},
		},
	})

	Register(EntityType{
		Name:      "salary",
		Label:     "Salary Records",
		KeyField:  "reference",
		NameField: "reference",
		DependsOn: []string{"employee", "salary_grade"},
		Fields: []FieldDef{
			{Name: "reference", Type: FieldString, Aliases: []string{"reference number", "record id"}},
			{Name: "employee", Type: FieldReference, References: "employee", Required: true, Aliases: []string{"employee number", "staff id", "emp no"}},
			{Name: "salary_grade", Type: FieldReference, References: "salary_grade", Aliases: []string{"grade", "band"}},
			{Name: "effective_date", Type: FieldDate, Required: true, Aliases: []string{"effective from", "start date"}},
			{Name: "base_salary", Type: FieldDecimal, Required: true, Aliases: []string{"basic salary", "base pay", "salary"}, Signature: true},
			{Name: "allowance", Type: FieldDecimal, Aliases: []string{"allowances", "total allowance"}},
			{Name: "currency", Type: FieldString, Aliases: []string{"currency code"}},
		},
	})
}

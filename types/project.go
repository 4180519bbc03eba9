package types

import "time"

// Project represents a development project captured by a user.
// It carries the funding, location and schedule data that the
// analytics views aggregate over.
type Project struct {
	// ID is the unique identifier of the project.
	ID string `json:"id" db:"id" bson:"_id"`

	// OwnerID identifies the account that created the project.
	OwnerID string `json:"ownerId" db:"owner_id" bson:"ownerId"`

	// ProjectName is the human-readable name of the project.
	ProjectName string `json:"projectName" db:"project_name" bson:"projectName"`

	// Country is the country the project is located in. It is always
	// one of the values in Countries.
	Country string `json:"country" db:"country" bson:"country"`

	// Budget is the project budget in USD. Always positive.
	Budget float64 `json:"budget" db:"budget" bson:"budget"`

	// StartDate is the planned start of the project.
	StartDate time.Time `json:"startDate" db:"start_date" bson:"startDate"`

	// EndDate is the planned end of the project. It is strictly after StartDate.
	EndDate time.Time `json:"endDate" db:"end_date" bson:"endDate"`

	// Description is a free-form summary of the project.
	Description string `json:"description" db:"description" bson:"description"`

	// CreatedAt is the timestamp at which the project was stored.
	CreatedAt time.Time `json:"createdAt" db:"created_at" bson:"createdAt"`

	// UpdatedAt is the timestamp of the most recent write to the project.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" bson:"updatedAt"`
}

// ProjectDraft is a validated, normalized project that has not been stored yet.
type ProjectDraft struct {
	ProjectName string
	Country     string
	Budget      float64
	StartDate   time.Time
	EndDate     time.Time
	Description string
}

// ToProject builds an unsaved Project owned by ownerID.
func (d ProjectDraft) ToProject(ownerID string) Project {
	return Project{
		OwnerID:     ownerID,
		ProjectName: d.ProjectName,
		Country:     d.Country,
		Budget:      d.Budget,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Description: d.Description,
	}
}

// Countries is the closed list of countries a project can be located in.
var Countries = []string{
	"Bangladesh",
	"Bhutan",
	"Cambodia",
	"China",
	"India",
	"Indonesia",
	"Kazakhstan",
	"Laos",
	"Malaysia",
	"Maldives",
	"Mongolia",
	"Myanmar",
	"Nepal",
	"Pakistan",
	"Philippines",
	"Sri Lanka",
	"Thailand",
	"Vietnam",
}

// IsCountry reports whether name is one of Countries.
func IsCountry(name string) bool {
	for _, c := range Countries {
		if c == name {
			return true
		}
	}
	return false
}

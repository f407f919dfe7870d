package models

import "sort"

// StatusMode selects how a status filter value is matched against a record.
type StatusMode int

const (
	// StatusNone means the resource has no status filter.
	StatusNone StatusMode = iota
	// StatusCategorical compares the filter value to the status field ignoring case.
	StatusCategorical
	// StatusResolution adds the "resolved" and "unresolved" buckets.
	StatusResolution
)

// Action is a moderation action offered by a resource page.
type Action uint8

const (
	ActionApprove Action = 1 << iota
	ActionReject
	ActionResolve
	ActionEdit
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionResolve:
		return "resolve"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Join embeds a related row under Alias, found by matching Column against
// the id of a row in Table.
type Join struct {
	Alias   string
	Column  string
	Table   string
	Columns []string
}

// Owner is one recipient of a moderation notice.
type Owner struct {
	// Field holds the owner's profile id on the moderated record.
	Field string
	// Profile is the embedded profile carrying the push token. When empty
	// the token is looked up in the profiles table by the owner id.
	Profile string
	// Message is a format string taking the record name and the verb.
	Message string
}

// Notice describes the notifications sent after approve or reject.
type Notice struct {
	ApprovedTitle string
	RejectedTitle string
	ApprovedType  string
	RejectedType  string
	Owners        []Owner
}

// Title returns the notification title for a decision.
func (n Notice) Title(approved bool) string {
	if approved {
		return n.ApprovedTitle
	}
	return n.RejectedTitle
}

// Type returns the notification type for a decision.
func (n Notice) Type(approved bool) string {
	if approved {
		return n.ApprovedType
	}
	return n.RejectedType
}

// Resource describes one moderated table and the page that manages it.
type Resource struct {
	Name           string
	Title          string
	Table          string
	Joins          []Join
	SearchFields   []string
	StatusField    string
	StatusMode     StatusMode
	StatusValues   []string
	EditableFields []string
	ImageFields    []string
	Actions        Action
	Notice         *Notice
}

// Can reports whether the resource offers the action.
func (r Resource) Can(a Action) bool {
	return r.Actions&a != 0
}

// Editable reports whether field may be changed through the edit buffer.
func (r Resource) Editable(field string) bool {
	for _, f := range r.EditableFields {
		if f == field {
			return true
		}
	}
	return false
}

// Images returns the non-empty image URLs of a record, including embedded
// profile pictures.
func (r Resource) Images(rec Record) []string {
	var out []string
	for _, f := range r.ImageFields {
		if s := rec.Text(f); s != "" {
			out = append(out, s)
		}
	}
	for _, j := range r.Joins {
		if s := rec.Text(j.Alias + ".profilePicture"); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const (
	TableProfiles        = "profiles"
	TableProducts        = "product_listings"
	TableDonations       = "donations"
	TableDamageReports   = "damage_reports"
	TableQueries         = "queries"
	TableSharedOwnership = "shared_ownership"
	TableAdmins          = "admins"
	TableNotifications   = "notifications"
)

const (
	StatusResolved = "resolved"
	ApprovedYes    = "yes"
	ApprovedNo     = "no"
)

var profileColumns = []string{"name", "profilePicture", "phone", "address"}

var ownerColumns = []string{"name", "profilePicture", "phone", "address", "expo_push_token"}

var resources = map[string]Resource{
	"profiles": {
		Name:           "profiles",
		Title:          "Users",
		Table:          TableProfiles,
		SearchFields:   []string{"name", "address", "phone"},
		EditableFields: []string{"name", "address", "phone"},
		ImageFields:    []string{"profilePicture"},
		Actions:        ActionEdit | ActionDelete,
	},
	"products": {
		Name:  "products",
		Title: "Products",
		Table: TableProducts,
		Joins: []Join{
			{Alias: "owner1_profile", Column: "owner1", Table: TableProfiles, Columns: ownerColumns},
			{Alias: "owner2_profile", Column: "owner2", Table: TableProfiles, Columns: ownerColumns},
		},
		SearchFields:   []string{"name", "category"},
		StatusField:    "approved",
		StatusMode:     StatusCategorical,
		StatusValues:   []string{ApprovedYes, ApprovedNo},
		EditableFields: []string{"name", "category", "price_per_hour", "address"},
		ImageFields:    []string{"picture1_url", "picture2_url", "picture3_url", "picture4_url"},
		Actions:        ActionApprove | ActionReject | ActionEdit | ActionDelete,
		Notice: &Notice{
			ApprovedTitle: "Product Approved",
			RejectedTitle: "Product Rejected",
			ApprovedType:  "approval",
			RejectedType:  "rejection",
			Owners: []Owner{
				{Field: "owner1", Profile: "owner1_profile", Message: `Your product "%s" has been %s.`},
				{Field: "owner2", Profile: "owner2_profile", Message: `Your shared product "%s" has been %s.`},
			},
		},
	},
	"donations": {
		Name:  "donations",
		Title: "Donations",
		Table: TableDonations,
		Joins: []Join{
			{Alias: "profile", Column: "profile_id", Table: TableProfiles, Columns: profileColumns},
		},
		SearchFields:   []string{"name", "category"},
		StatusField:    "approved",
		StatusMode:     StatusCategorical,
		StatusValues:   []string{ApprovedYes, ApprovedNo},
		EditableFields: []string{"name", "category", "address"},
		ImageFields:    []string{"picture1_url", "picture2_url", "picture3_url", "picture4_url"},
		Actions:        ActionApprove | ActionReject | ActionEdit | ActionDelete,
		Notice: &Notice{
			ApprovedTitle: "Donation Approved",
			RejectedTitle: "Donation Rejected",
			ApprovedType:  "donation",
			RejectedType:  "donation",
			Owners: []Owner{
				{Field: "profile_id", Message: `Your donation "%s" has been %s.`},
			},
		},
	},
	"damage-reports": {
		Name:  "damage-reports",
		Title: "Damage Reports",
		Table: TableDamageReports,
		Joins: []Join{
			{Alias: "user", Column: "user_id", Table: TableProfiles, Columns: profileColumns},
			{Alias: "clash_partner", Column: "clash_partner_id", Table: TableProfiles, Columns: profileColumns},
		},
		SearchFields: []string{"title", "description"},
		StatusField:  "status",
		StatusMode:   StatusResolution,
		ImageFields:  []string{"image_url"},
		Actions:      ActionResolve,
	},
	"queries": {
		Name:  "queries",
		Title: "Help Center Queries",
		Table: TableQueries,
		Joins: []Join{
			{Alias: "user", Column: "user_id", Table: TableProfiles, Columns: profileColumns},
		},
		SearchFields:   []string{"title"},
		StatusField:    "status",
		StatusMode:     StatusResolution,
		EditableFields: []string{"status"},
		ImageFields:    []string{"image_url"},
		Actions:        ActionResolve | ActionEdit | ActionDelete,
	},
	"shared-ownership": {
		Name:  "shared-ownership",
		Title: "Shared Ownership",
		Table: TableSharedOwnership,
		Joins: []Join{
			{Alias: "user1", Column: "user_id1", Table: TableProfiles, Columns: profileColumns},
			{Alias: "user2", Column: "user_id2", Table: TableProfiles, Columns: profileColumns},
		},
		SearchFields:   []string{"user1.name", "user2.name"},
		StatusField:    "status",
		StatusMode:     StatusCategorical,
		EditableFields: []string{"status"},
		Actions:        ActionEdit | ActionDelete,
	},
}

// LookupResource returns the resource registered under name.
func LookupResource(name string) (Resource, bool) {
	r, ok := resources[name]
	return r, ok
}

// Resources returns every resource sorted by name.
func Resources() []Resource {
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

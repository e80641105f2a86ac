package listing

import (
	"fmt"
	"strings"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Collection names under an agent document.
const (
	AgentsCollection     = "agents"
	PropertiesCollection = "properties"
	ContactsCollection   = "contacts"
	LeadsCollection      = "leads"
	PagesCollection      = "pages"
	SettingsCollection   = "settings"

	siteSettingsID = "site"
)

func checkID(id string, err error) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q", err, id)
	}
	return nil
}

func agentPath(uid string) (string, error) {
	if err := checkID(uid, ErrInvalidAgentID); err != nil {
		return "", err
	}
	return AgentsCollection + "/" + uid, nil
}

// AgentDoc locates the profile of agent uid.
func AgentDoc(uid string) (types.Locator, error) {
	p, err := agentPath(uid)
	if err != nil {
		return types.Locator{}, err
	}
	return types.Doc(p)
}

func sub(uid, coll string) (types.Locator, error) {
	p, err := agentPath(uid)
	if err != nil {
		return types.Locator{}, err
	}
	return types.Collection(p + "/" + coll)
}

func subDoc(uid, coll, id string) (types.Locator, error) {
	p, err := agentPath(uid)
	if err != nil {
		return types.Locator{}, err
	}
	if err := checkID(id, ErrInvalidID); err != nil {
		return types.Locator{}, err
	}
	return types.Doc(p + "/" + coll + "/" + id)
}

// Properties locates every listing of agent uid.
func Properties(uid string) (types.Locator, error) { return sub(uid, PropertiesCollection) }

// PropertyDoc locates one listing.
func PropertyDoc(uid, id string) (types.Locator, error) {
	return subDoc(uid, PropertiesCollection, id)
}

// Contacts locates the address book of agent uid.
func Contacts(uid string) (types.Locator, error) { return sub(uid, ContactsCollection) }

// ContactDoc locates one contact.
func ContactDoc(uid, id string) (types.Locator, error) { return subDoc(uid, ContactsCollection, id) }

// Leads locates every lead of agent uid.
func Leads(uid string) (types.Locator, error) { return sub(uid, LeadsCollection) }

// LeadDoc locates one lead.
func LeadDoc(uid, id string) (types.Locator, error) { return subDoc(uid, LeadsCollection, id) }

// Pages locates the landing pages of agent uid.
func Pages(uid string) (types.Locator, error) { return sub(uid, PagesCollection) }

// PageDoc locates one landing page.
func PageDoc(uid, id string) (types.Locator, error) { return subDoc(uid, PagesCollection, id) }

// SettingsDoc locates the site settings of agent uid.
func SettingsDoc(uid string) (types.Locator, error) {
	return subDoc(uid, SettingsCollection, siteSettingsID)
}

// PropertiesByStatus lists the agent's properties in one status, newest
// first.
func PropertiesByStatus(uid, status string) (types.Locator, error) {
	if !ValidStatus(status) {
		return types.Locator{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	loc, err := Properties(uid)
	if err != nil {
		return types.Locator{}, err
	}
	if loc, err = loc.Where("status", types.OpEqual, status); err != nil {
		return types.Locator{}, err
	}
	return loc.OrderBy("createdAt", types.Desc)
}

// FeaturedProperties lists the agent's featured listings that are shown on
// the public site.
func FeaturedProperties(uid string) (types.Locator, error) {
	loc, err := Properties(uid)
	if err != nil {
		return types.Locator{}, err
	}
	if loc, err = loc.Where("featured", types.OpEqual, true); err != nil {
		return types.Locator{}, err
	}
	return loc.Where("status", types.OpIn, []string{StatusActive, StatusReserved})
}

// OpenLeads lists leads not yet won or lost, newest first.
func OpenLeads(uid string) (types.Locator, error) {
	loc, err := Leads(uid)
	if err != nil {
		return types.Locator{}, err
	}
	if loc, err = loc.Where("status", types.OpIn, []string{LeadNew, LeadContacted, LeadQualified}); err != nil {
		return types.Locator{}, err
	}
	return loc.OrderBy("createdAt", types.Desc)
}

// PublishedPages lists the agent's published landing pages.
func PublishedPages(uid string) (types.Locator, error) {
	loc, err := Pages(uid)
	if err != nil {
		return types.Locator{}, err
	}
	return loc.Where("published", types.OpEqual, true)
}

// ActiveListings lists active properties of every agent, capped at limit
// when positive. It backs the shared public catalog.
func ActiveListings(limit int) (types.Locator, error) {
	loc, err := types.CollectionGroup(PropertiesCollection)
	if err != nil {
		return types.Locator{}, err
	}
	if loc, err = loc.Where("status", types.OpEqual, StatusActive); err != nil {
		return types.Locator{}, err
	}
	if loc, err = loc.OrderBy("createdAt", types.Desc); err != nil {
		return types.Locator{}, err
	}
	if limit > 0 {
		return loc.Limit(limit)
	}
	return loc, nil
}

// DemoLayout maps the fields of the demo bootstrap snapshot to the
// locators of agent uid they seed.
func DemoLayout(uid string) (map[string]types.Locator, error) {
	type entry struct {
		field string
		loc   func(string) (types.Locator, error)
	}
	entries := []entry{
		{"agent", AgentDoc},
		{"properties", Properties},
		{"contacts", Contacts},
		{"leads", Leads},
		{"pages", Pages},
		{"settings", SettingsDoc},
	}
	layout := make(map[string]types.Locator, len(entries))
	for _, e := range entries {
		loc, err := e.loc(uid)
		if err != nil {
			return nil, err
		}
		layout[e.field] = loc
	}
	return layout, nil
}

package registration

// Module is a static catalog entry. Loaded at startup, not user-editable.
type Module struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EarlyPrice  int    `json:"early_price"`  // per person, before the early-bird cutoff
	NormalPrice int    `json:"normal_price"` // per person, from the cutoff onwards
	MaxTeamSize int    `json:"max_team_size"`
	Waivable    bool   `json:"waivable"` // fee waived for affiliated teams
}

type Catalog []Module

// NewCatalog returns the competition's module lineup. The module identified by
// waivableID has its fee waived for teams from the affiliate institute.
func NewCatalog(waivableID string) Catalog {
	cat := Catalog{
		{ID: "cp", Name: "Competitive Programming", EarlyPrice: 700, NormalPrice: 1500, MaxTeamSize: 3},
		{ID: "game-dev", Name: "Game Dev", EarlyPrice: 500, NormalPrice: 1000, MaxTeamSize: 3},
		{ID: "shark-tank", Name: "Shark Tank", EarlyPrice: 700, NormalPrice: 1500, MaxTeamSize: 4},
		{ID: "ml", Name: "Machine Learning", EarlyPrice: 700, NormalPrice: 1500, MaxTeamSize: 3},
		{ID: "web-dev", Name: "Web Development", EarlyPrice: 500, NormalPrice: 1000, MaxTeamSize: 3},
		{ID: "data", Name: "Data Analytics", EarlyPrice: 500, NormalPrice: 1000, MaxTeamSize: 2},
		{ID: "ui-ux", Name: "UI/UX Design", EarlyPrice: 500, NormalPrice: 1000, MaxTeamSize: 2},
		{ID: "csi", Name: "Crime Scene Investigation", EarlyPrice: 700, NormalPrice: 1500, MaxTeamSize: 3},
		{ID: "gen-ai", Name: "Gen AI", EarlyPrice: 500, NormalPrice: 1000, MaxTeamSize: 3},
	}
	for i := range cat {
		if cat[i].ID == waivableID {
			cat[i].Waivable = true
		}
	}
	return cat
}

func (c Catalog) Get(id string) (Module, bool) {
	for _, mod := range c {
		if mod.ID == id {
			return mod, true
		}
	}
	return Module{}, false
}

// MaxTeamSize returns the smallest team-size cap across the given modules;
// 0 if none of the ids are known.
func (c Catalog) MaxTeamSize(ids []string) int {
	var max int
	for _, id := range ids {
		mod, ok := c.Get(id)
		if !ok {
			continue
		}
		if max == 0 || mod.MaxTeamSize < max {
			max = mod.MaxTeamSize
		}
	}
	return max
}

package pokeapi

// Reference is a lightweight pointer to a Pokémon, as returned by listing
// and type endpoints before hydration.
type Reference struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Sprites holds the thumbnail; FrontDefault is nil when the upstream has none.
type Sprites struct {
	FrontDefault *string `json:"front_default"`
}

// Summary is the canonical record served to the frontend. Types keep the
// upstream slot order; Stats maps a stat name to its base value.
type Summary struct {
	ID      int            `json:"id"`
	Name    string         `json:"name"`
	Types   []string       `json:"types"`
	Sprites Sprites        `json:"sprites"`
	Stats   map[string]int `json:"stats"`
}

// Stat returns the base value of a stat and whether the Pokémon has it.
func (s *Summary) Stat(name string) (int, bool) {
	v, ok := s.Stats[name]
	return v, ok
}

type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type listPayload struct {
	Count   int             `json:"count"`
	Results []namedResource `json:"results"`
}

type typePayload struct {
	Name    string `json:"name"`
	Pokemon []struct {
		Slot    int           `json:"slot"`
		Pokemon namedResource `json:"pokemon"`
	} `json:"pokemon"`
}

type detailPayload struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Types []struct {
		Slot int           `json:"slot"`
		Type namedResource `json:"type"`
	} `json:"types"`
	Sprites struct {
		FrontDefault *string `json:"front_default"`
	} `json:"sprites"`
	Stats []struct {
		BaseStat int           `json:"base_stat"`
		Effort   int           `json:"effort"`
		Stat     namedResource `json:"stat"`
	} `json:"stats"`
}

func (d *detailPayload) summary() *Summary {
	s := &Summary{
		ID:      d.ID,
		Name:    d.Name,
		Types:   make([]string, 0, len(d.Types)),
		Sprites: Sprites{FrontDefault: d.Sprites.FrontDefault},
		Stats:   make(map[string]int, len(d.Stats)),
	}
	for _, t := range d.Types {
		s.Types = append(s.Types, t.Type.Name)
	}
	for _, st := range d.Stats {
		s.Stats[st.Stat.Name] = st.BaseStat
	}
	return s
}

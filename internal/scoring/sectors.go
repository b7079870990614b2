package scoring

import "sort"

// Sectors is a static symbol-to-sector lookup.
type Sectors struct {
	members  map[string][]string
	bySymbol map[string]string
}

// NewSectors indexes members by sector name. A symbol listed under several
// sectors belongs to the alphabetically first one.
func NewSectors(members map[string][]string) *Sectors {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Sectors{
		members:  make(map[string][]string, len(members)),
		bySymbol: make(map[string]string),
	}
	for _, name := range names {
		s.members[name] = append([]string(nil), members[name]...)
		for _, sym := range members[name] {
			if _, taken := s.bySymbol[sym]; !taken {
				s.bySymbol[sym] = name
			}
		}
	}
	return s
}

// SectorOf returns the sector a symbol is assigned to.
func (s *Sectors) SectorOf(symbol string) (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.bySymbol[symbol]
	return name, ok
}

// Peers returns the other members of symbol's sector.
func (s *Sectors) Peers(symbol string) []string {
	name, ok := s.SectorOf(symbol)
	if !ok {
		return nil
	}
	var out []string
	for _, m := range s.members[name] {
		if m != symbol {
			out = append(out, m)
		}
	}
	return out
}

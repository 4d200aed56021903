package index

import "sort"

// Entry pairs a section identity with its TokenIndex. A slice of entries is
// the unit the ranker scores.
type Entry struct {
	SectionID int64
	Index     TokenIndex
}

// Occurrence is one position of one query lexeme inside a section. Lexeme
// is the lexeme's ordinal in the query, not the string.
type Occurrence struct {
	Position int
	Lexeme   int
}

// Occurrences merges the position lists of lexemes into one list sorted by
// position. It returns nil as soon as one lexeme is absent, so a nil result
// means the section does not match an AND of all lexemes.
func (e Entry) Occurrences(lexemes []string) []Occurrence {
	total := 0
	for _, lx := range lexemes {
		n := len(e.Index.Positions[lx])
		if n == 0 {
			return nil
		}
		total += n
	}
	if total == 0 {
		return nil
	}
	occ := make([]Occurrence, 0, total)
	for i, lx := range lexemes {
		for _, pos := range e.Index.Positions[lx] {
			occ = append(occ, Occurrence{Position: pos, Lexeme: i})
		}
	}
	sort.Slice(occ, func(i, j int) bool {
		if occ[i].Position != occ[j].Position {
			return occ[i].Position < occ[j].Position
		}
		return occ[i].Lexeme < occ[j].Lexeme
	})
	return occ
}

// SortEntries orders entries by ascending section id.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SectionID < entries[j].SectionID
	})
}
